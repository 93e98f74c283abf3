// Command td is a CLI client for the taskdeck backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taskdeck/internal/api"
	"github.com/and161185/taskdeck/internal/model"
	"github.com/and161185/taskdeck/internal/store"
)

// ---- utils ----

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `td CLI
Usage:
  td [-base URL] <cmd> [args]

Commands:
  version
  login     -token <google-id-token> | -token-file <path|->   (saves session)
  me
  refresh   [-token <google-id-token>]
  logout
  list      [-search s] [-category c] [-priority p] [-completed true|false]
  add       -title t [-desc d] [-priority High|Medium|Low] [-category Work|Personal] [-due date] [-tags a,b]
  edit      -id <id> [-title t] [-desc d] [-priority p] [-category c] [-due date] [-completed true|false]
  done      -id <id>
  rm        -id <id>
  shares    -id <taskId>
  share     -id <taskId> -email <email> [-role viewer|editor]
  unshare   -id <taskId> -email <email>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against one backend base URL, restoring the
// saved session cookie before any call.
func main() {
	base := flag.String("base", envOr("TASKDECK_BASE_URL", "http://localhost:8080"), "backend base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	client := api.NewClient(*base, nil)
	_ = loadCookies(client)

	switch cmd {

	case "version":
		fmt.Printf("td %s (%s)\n", version, buildDate)

	case "login":
		cmdLogin(ctx, args, client, logger)

	case "me":
		me, err := client.FetchMe(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(me)

	case "refresh":
		cmdRefresh(ctx, args, client, logger)

	case "logout":
		cmdLogout(ctx, client, logger)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		search := fs.String("search", "", "substring match on title/description")
		category := fs.String("category", "", "Work|Personal")
		priority := fs.String("priority", "", "High|Medium|Low")
		completed := fs.String("completed", "", "true|false")
		_ = fs.Parse(args)

		tasks, err := client.ListTasks(ctx)
		if err != nil {
			fail(err)
		}
		f := model.TaskFilters{Search: *search}
		if *category != "" {
			c := model.Category(*category)
			f.Category = &c
		}
		if *priority != "" {
			p := model.Priority(*priority)
			f.Priority = &p
		}
		if *completed != "" {
			b := *completed == "true"
			f.Completed = &b
		}
		var out []model.Task
		for i := range tasks {
			if f.Matches(&tasks[i]) {
				out = append(out, tasks[i])
			}
		}
		model.SortForDisplay(out)
		printJSON(taskRows(out))

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		title := fs.String("title", "", "title (required)")
		desc := fs.String("desc", "", "description")
		priority := fs.String("priority", string(model.PriorityMedium), "High|Medium|Low")
		category := fs.String("category", string(model.CategoryPersonal), "Work|Personal")
		due := fs.String("due", "", "due date (yyyy-mm-dd, dd.mm.yyyy or ISO)")
		tags := fs.String("tags", "", "comma-separated tags")
		_ = fs.Parse(args)
		if *title == "" {
			fmt.Fprintln(os.Stderr, "need -title")
			os.Exit(1)
		}
		data := model.CreateTask{
			Title:       *title,
			Description: *desc,
			Priority:    model.Priority(*priority),
			Category:    model.Category(*category),
			DueDate:     *due,
		}
		if *tags != "" {
			data.Tags = strings.Split(*tags, ",")
		}
		created, err := client.CreateTask(ctx, data)
		if err != nil {
			fail(err)
		}
		printJSON(created)

	case "edit":
		cmdEdit(ctx, args, client, logger)

	case "done":
		fs := flag.NewFlagSet("done", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		st := store.New(client, logger)
		st.LoadAll(ctx)
		if err := st.ToggleComplete(ctx, *id); err != nil {
			fail(err)
		}
		st.Wait()
		if t, ok := st.Get(*id); ok {
			printJSON(t)
		}

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		st := store.New(client, logger)
		if err := st.Delete(ctx, *id); err != nil {
			fail(err)
		}
		st.Wait()
		fmt.Println("ok")

	case "shares":
		fs := flag.NewFlagSet("shares", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		shares, err := client.ListShares(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(shares)

	case "share":
		fs := flag.NewFlagSet("share", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		email := fs.String("email", "", "collaborator email")
		role := fs.String("role", string(model.RoleViewer), "viewer|editor")
		_ = fs.Parse(args)
		if *id == "" || *email == "" {
			fmt.Fprintln(os.Stderr, "need -id and -email")
			os.Exit(1)
		}
		if err := client.AddShare(ctx, *id, *email, model.ShareRole(*role)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "unshare":
		fs := flag.NewFlagSet("unshare", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		email := fs.String("email", "", "collaborator email")
		_ = fs.Parse(args)
		if *id == "" || *email == "" {
			fmt.Fprintln(os.Stderr, "need -id and -email")
			os.Exit(1)
		}
		if err := client.RemoveShare(ctx, *id, *email); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}

// cmdEdit builds a partial patch from the flags actually set, then updates with
// conflict retry via the store.
func cmdEdit(ctx context.Context, args []string, client *api.Client, logger *zap.Logger) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	id := fs.String("id", "", "task id")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	priority := fs.String("priority", "", "High|Medium|Low")
	category := fs.String("category", "", "Work|Personal")
	due := fs.String("due", "", "due date; empty clears it")
	completed := fs.String("completed", "", "true|false")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}

	var patch model.TaskPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			patch.Title = title
		case "desc":
			patch.Description = desc
		case "priority":
			p := model.Priority(*priority)
			patch.Priority = &p
		case "category":
			c := model.Category(*category)
			patch.Category = &c
		case "due":
			patch.DueDate = due
		case "completed":
			b := *completed == "true"
			patch.Completed = &b
		}
	})

	st := store.New(client, logger)
	st.LoadAll(ctx)
	if _, ok := st.Get(*id); !ok {
		fmt.Fprintln(os.Stderr, "unknown task id")
		os.Exit(1)
	}
	if err := st.UpdateWithRetry(ctx, *id, patch, 2); err != nil {
		fail(err)
	}
	st.Wait()
	if t, ok := st.Get(*id); ok {
		printJSON(t)
	}
}

// taskRows shortens tasks for list output.
func taskRows(tasks []model.Task) []map[string]any {
	rows := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		row := map[string]any{
			"id":        t.ID,
			"title":     t.Title,
			"priority":  t.Priority,
			"category":  t.Category,
			"completed": t.Completed,
		}
		if t.DueDate != nil {
			row["due"] = t.DueDate.Format(time.RFC3339)
		}
		if t.Version != nil {
			row["version"] = *t.Version
		}
		rows = append(rows, row)
	}
	return rows
}
