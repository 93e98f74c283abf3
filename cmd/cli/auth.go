// cmd/cli/auth.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taskdeck/internal/api"
	"github.com/and161185/taskdeck/internal/session"
)

// ---- config/session store ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "taskdeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskdeck")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sessionFile struct {
	SavedAt time.Time     `json:"saved_at"`
	Cookies []savedCookie `json:"cookies"`
}

// saveCookies persists the backend session cookies from the client's jar.
func saveCookies(c *api.Client) error {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return err
	}
	jar := c.HTTPClient().Jar
	if jar == nil {
		return errors.New("client has no cookie jar")
	}
	sf := sessionFile{SavedAt: time.Now()}
	for _, ck := range jar.Cookies(u) {
		sf.Cookies = append(sf.Cookies, savedCookie{Name: ck.Name, Value: ck.Value})
	}
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(sessionPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sf)
}

// loadCookies restores saved session cookies into the client's jar.
func loadCookies(c *api.Client) error {
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return err
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return err
	}
	jar := c.HTTPClient().Jar
	if jar == nil {
		return errors.New("client has no cookie jar")
	}
	cookies := make([]*http.Cookie, 0, len(sf.Cookies))
	for _, ck := range sf.Cookies {
		cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	jar.SetCookies(u, cookies)
	return nil
}

// ---- token source ----

// staticTokenSource serves a pre-obtained Google ID token. A terminal cannot
// run the interactive browser sign-in, so the token is produced out of band
// (e.g. gcloud, or copied from a browser session) and passed in.
type staticTokenSource struct{ token string }

func (s *staticTokenSource) SignIn(context.Context) error {
	if s.token == "" {
		return errors.New("no identity token (pass -token or -token-file)")
	}
	return nil
}

func (s *staticTokenSource) IDToken(context.Context, bool) (string, error) {
	if s.token == "" {
		return "", errors.New("no identity token")
	}
	return s.token, nil
}

func (s *staticTokenSource) SignOut(context.Context) error {
	s.token = ""
	return nil
}

func readTokenArg(token, tokenFile string) (string, error) {
	if token != "" {
		return token, nil
	}
	if tokenFile == "" {
		return "", nil
	}
	if tokenFile == "-" {
		b, err := io.ReadAll(os.Stdin)
		return strings.TrimSpace(string(b)), err
	}
	b, err := os.ReadFile(tokenFile)
	return strings.TrimSpace(string(b)), err
}

// ---- commands ----

// cmdLogin exchanges a Google ID token for a backend session and saves the
// session cookie.
func cmdLogin(ctx context.Context, args []string, client *api.Client, logger *zap.Logger) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "Google ID token")
	tokenFile := fs.String("token-file", "", "file with Google ID token ('-'=stdin)")
	_ = fs.Parse(args)

	tok, err := readTokenArg(*token, *tokenFile)
	if err != nil {
		fail(err)
	}

	sess := session.New(&staticTokenSource{token: tok}, client, logger)
	if err := sess.LoginWithGoogle(ctx); err != nil {
		fail(err)
	}
	sess.Bootstrap(ctx)
	if sess.State() != session.StateAuthenticated {
		fail(errors.New("login failed (see log for details)"))
	}
	if err := saveCookies(client); err != nil {
		fail(err)
	}
	printJSON(sess.Current())
}

// cmdRefresh re-validates the session. With -token it re-runs the full
// exchange; without, it just refetches the backend profile.
func cmdRefresh(ctx context.Context, args []string, client *api.Client, logger *zap.Logger) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	token := fs.String("token", "", "Google ID token")
	_ = fs.Parse(args)

	if *token == "" {
		me, err := client.FetchMe(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(me)
		return
	}
	sess := session.New(&staticTokenSource{token: *token}, client, logger)
	sess.RefreshMe(ctx)
	if sess.State() != session.StateAuthenticated {
		fail(errors.New("refresh failed"))
	}
	if err := saveCookies(client); err != nil {
		fail(err)
	}
	printJSON(sess.Current())
}

// cmdLogout invalidates the backend session best-effort and always removes the
// local session file.
func cmdLogout(ctx context.Context, client *api.Client, logger *zap.Logger) {
	sess := session.New(&staticTokenSource{}, client, logger)
	sess.Logout(ctx)
	if err := os.Remove(sessionPath()); err != nil && !os.IsNotExist(err) {
		fail(err)
	}
	fmt.Println("ok")
}
