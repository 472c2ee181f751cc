package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/pkg/color"
)

var (
	app     = kingpin.New("feeta", "Project health and task approval from the command line")
	noColor = app.Flag("no-color", "Disable colored output").Bool()
	apiURL  = app.Flag("api-url", "Dashboard API base URL (overrides FEETA_API_URL)").String()

	projectsCmd = app.Command("projects", "List projects and their repositories")
	membersCmd  = app.Command("members", "List team members and how idle they are")

	overviewCmd     = app.Command("overview", "Show health, risks and progress per project")
	overviewProject = overviewCmd.Flag("project", "Only this project ID").Short('p').String()

	tasksCmd      = app.Command("tasks", "List tasks matching filters")
	tasksProject  = tasksCmd.Flag("project", "Project ID, or all").Short('p').Default("all").String()
	tasksStatus   = tasksCmd.Flag("status", "Task status, or all").Short('s').Default("all").String()
	tasksPriority = tasksCmd.Flag("priority", "critical, medium, easy, or all").Default("all").String()
	tasksSearch   = tasksCmd.Flag("search", "Substring of the assignee name").String()

	planCmd     = app.Command("plan", "Turn a request into subtasks, answering clarification questions")
	planProject = planCmd.Flag("project", "Project ID").Short('p').Required().String()
	planResume  = planCmd.Flag("resume", "Continue the stored conversation").Bool()
	planIntent  = planCmd.Arg("request", "What needs to be done").Strings()

	approveCmd     = app.Command("approve", "Approve pending tasks")
	approveProject = approveCmd.Flag("project", "Project ID").Short('p').Required().String()
	approveChannel = approveCmd.Flag("channel", "Slack channel ID to post approved tasks to").String()
	approveAssign  = approveCmd.Flag("assign", "TASK_ID=Name <email>; repeatable").Strings()
	approveYes     = approveCmd.Flag("yes", "Skip the confirmation prompt").Short('y').Bool()

	watchCmd      = app.Command("watch", "Refresh the overview periodically and alert on new risks")
	watchInterval = watchCmd.Flag("interval", "Refresh interval (overrides FEETA_REFRESH_INTERVAL)").Duration()

	reposCmd        = app.Command("repos", "Manage connected repositories")
	reposConnectCmd = reposCmd.Command("connect", "Connect repositories to a project, classifying each one")
	reposProject    = reposConnectCmd.Arg("project", "Project ID").Required().String()
	reposRefs       = reposConnectCmd.Arg("repos", "owner/name[=description]").Required().Strings()

	alertsCmd          = app.Command("alerts", "Manage Web Push subscriptions for risk alerts")
	alertsListCmd      = alertsCmd.Command("list", "List subscriptions")
	alertsSubscribeCmd = alertsCmd.Command("subscribe", "Add a subscription")
	alertsEndpoint     = alertsSubscribeCmd.Flag("endpoint", "Push service endpoint").Required().String()
	alertsP256dh       = alertsSubscribeCmd.Flag("p256dh", "Browser public key").Required().String()
	alertsAuth         = alertsSubscribeCmd.Flag("auth", "Browser auth secret").Required().String()
	alertsRemoveCmd    = alertsCmd.Command("remove", "Remove a subscription")
	alertsRemoveID     = alertsRemoveCmd.Arg("id", "Subscription ID").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadClientEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(env.NewLogger(os.Stderr))
	if *noColor {
		color.SetEnabled(false)
	}
	if *apiURL != "" {
		env.APIURL = *apiURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newCLI(ctx, env, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case projectsCmd.FullCommand():
		err = c.projects(ctx)
	case membersCmd.FullCommand():
		err = c.members(ctx)
	case overviewCmd.FullCommand():
		err = c.overview(ctx, *overviewProject)
	case tasksCmd.FullCommand():
		err = c.tasks(ctx, *tasksProject, *tasksStatus, *tasksPriority, *tasksSearch)
	case planCmd.FullCommand():
		err = c.plan(ctx, *planProject, *planResume, *planIntent)
	case approveCmd.FullCommand():
		err = c.approve(ctx, *approveProject, *approveChannel, *approveAssign, *approveYes)
	case watchCmd.FullCommand():
		err = c.watch(ctx, *watchInterval)
	case reposConnectCmd.FullCommand():
		err = c.connectRepos(ctx, *reposProject, *reposRefs)
	case alertsListCmd.FullCommand():
		err = c.listSubscriptions(ctx)
	case alertsSubscribeCmd.FullCommand():
		err = c.subscribe(ctx, *alertsEndpoint, *alertsP256dh, *alertsAuth)
	case alertsRemoveCmd.FullCommand():
		err = c.unsubscribe(ctx, *alertsRemoveID)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorText(err))
		os.Exit(1)
	}
}
