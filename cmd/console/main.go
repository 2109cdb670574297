package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/console"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/quota"
)

const usage = `usage: console <command> [flags]

commands:
  subs       list own subscriptions with usage
  redeem     redeem a code: redeem <code>
  plans      list subscription plans (admin)
  checkin    daily check-in, -info only shows status
  exclusive  manage exclusive channels (admin): exclusive -user <id> [list|add <channel>|remove <channel>]
  logs       list error logs (admin), -hide/-show toggle columns
  sticky     channel sticky sessions (admin): sticky [stats|list <channel>|release <channel> <hash>|release-all <channel>]
  page       show the subscription page HTML
`

type app struct {
	client *console.Client
	prefs  *console.Prefs
	mode   quota.Mode
	loc    *time.Location
	out    io.Writer
	in     *bufio.Reader
	log    *logrus.Entry
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	log := logger.WithComponent("console")

	prefsFile := cfg.Console.PrefsFile
	if prefsFile == "" {
		prefsFile = ".subhub-console.yaml"
	}
	prefs, err := console.LoadPrefs(prefsFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load prefs")
	}

	a := &app{
		client: console.NewClient(cfg.Console),
		prefs:  prefs,
		mode:   quota.ParseMode(cfg.Console.DisplayMode),
		loc:    cfg.Quota.Location(),
		out:    os.Stdout,
		in:     bufio.NewReader(os.Stdin),
		log:    log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "subs":
		err = a.subs(ctx, args)
	case "redeem":
		err = a.redeem(ctx, args)
	case "plans":
		err = a.plans(ctx, args)
	case "checkin":
		err = a.checkin(ctx, args)
	case "exclusive":
		err = a.exclusive(ctx, args)
	case "logs":
		err = a.logs(ctx, args)
	case "sticky":
		err = a.sticky(ctx, args)
	case "page":
		err = a.page(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cmd, describe(err))
		os.Exit(1)
	}
}

// describe 优先展示服务端消息
func describe(err error) string {
	var apiErr *console.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func (a *app) subs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("subs", flag.ExitOnError)
	page := fs.Int("p", 1, "Page")
	size := fs.Int("size", 10, "Page size")
	_ = fs.Parse(args)

	return a.printSubscriptions(ctx, *page, *size)
}

func (a *app) printSubscriptions(ctx context.Context, page, size int) error {
	result, err := a.client.ListSubscriptions(ctx, page, size)
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		fmt.Fprintln(a.out, "暂无订阅")
		return nil
	}

	for _, card := range console.NewSubscriptionCards(result.Items, a.mode, a.loc) {
		fmt.Fprintf(a.out, "#%d %s [%s]\n", card.ID, card.PlanName, card.Label.Text)
		fmt.Fprintf(a.out, "  %s ~ %s\n", card.StartTime, card.ExpireTime)
		if card.ShowExpiredBanner {
			fmt.Fprintln(a.out, "  订阅已过期")
		}
		if card.ShowExclusiveBanner {
			fmt.Fprintf(a.out, "  专属分组: %s\n", card.ExclusiveGroup)
		}
		for _, panel := range card.Panels {
			fmt.Fprintf(a.out, "  %s\n", panel.Text())
		}
	}
	fmt.Fprintf(a.out, "共 %d 条，第 %d 页\n", result.Total, result.Page)
	return nil
}

func (a *app) redeem(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing code")
	}

	resolver := console.NewResolver(a.client, console.ConfirmerFunc(a.confirmOverride))
	resolver.OnSuccess = func(ctx context.Context) error {
		return a.printSubscriptions(ctx, 1, 10)
	}
	form := console.NewRedeemForm(resolver)
	form.Code = args[0]

	res := form.Submit(ctx)
	switch res.Outcome {
	case console.OutcomeRedeemed:
		if res.Response != nil && res.Response.Quota > 0 {
			fmt.Fprintf(a.out, "兑换成功，额度 +%s\n", quota.ToDisplay(res.Response.Quota, a.mode))
		} else {
			fmt.Fprintln(a.out, "兑换成功")
		}
		if res.Err != nil {
			a.log.WithError(res.Err).Warn("Failed to refresh subscriptions")
		}
		return nil
	case console.OutcomeCancelled:
		fmt.Fprintln(a.out, res.Message)
		return nil
	default:
		if res.Err != nil {
			return res.Err
		}
		return errors.New(res.Message)
	}
}

func (a *app) confirmOverride(ctx context.Context, conflict *dto.ConflictInfo) (bool, error) {
	if conflict != nil && conflict.SubscriptionName != "" {
		expire := time.Unix(conflict.ExpireTime, 0).In(a.loc).Format("2006-01-02 15:04")
		fmt.Fprintf(a.out, "当前订阅 %s 将于 %s 到期。\n", conflict.SubscriptionName, expire)
	}
	fmt.Fprint(a.out, "兑换新订阅会替换当前订阅，是否继续? [y/N] ")

	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (a *app) plans(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plans", flag.ExitOnError)
	status := fs.Int("status", 0, "Filter by status, 1 enabled 2 disabled")
	page := fs.Int("p", 1, "Page")
	size := fs.Int("size", 20, "Page size")
	_ = fs.Parse(args)

	result, err := a.client.ListPlans(ctx, *status, *page, *size)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDAILY\tWEEKLY\tTOTAL\tDAYS\tGROUPS\tEXCLUSIVE")
	for _, p := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%v\n",
			p.ID, p.Name,
			a.limit(p.DailyQuotaLimit), a.limit(p.WeeklyQuotaLimit), a.limit(p.TotalQuotaLimit),
			p.DurationDays, strings.Join(p.AllowedGroups, ","), p.EnableExclusiveGroup)
	}
	return w.Flush()
}

func (a *app) limit(v int64) string {
	if v == 0 {
		return "不限"
	}
	return quota.ToDisplay(v, a.mode)
}

func (a *app) checkin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkin", flag.ExitOnError)
	infoOnly := fs.Bool("info", false, "Only show today's status")
	_ = fs.Parse(args)

	if *infoOnly {
		info, err := a.client.CheckinInfo(ctx)
		if err != nil {
			return err
		}
		if !info.Config.Enabled {
			fmt.Fprintln(a.out, "签到未开启")
			return nil
		}
		fmt.Fprintf(a.out, "今日已签到: %v，剩余签到额度 %s\n",
			info.Status.CheckedIn, quota.ToDisplay(info.Status.QuotaRemaining, a.mode))
		return nil
	}

	status, err := a.client.Checkin(ctx)
	if err != nil {
		return err
	}
	expires := time.Unix(status.ExpiresAt, 0).In(a.loc).Format("2006-01-02 15:04")
	fmt.Fprintf(a.out, "签到成功，获得 %s，%s 失效\n", quota.ToDisplay(status.QuotaRemaining, a.mode), expires)
	return nil
}

func (a *app) exclusive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exclusive", flag.ExitOnError)
	userID := fs.Int64("user", 0, "Target user id")
	_ = fs.Parse(args)

	rest := fs.Args()
	if *userID <= 0 {
		users, err := a.client.ExclusiveUsers(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNAME\tPLAN\tGROUP\tCHANNELS")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", u.UserID, u.Username, u.SubscriptionName, u.GroupName, u.ChannelCount)
		}
		return w.Flush()
	}

	m := console.NewExclusiveManager(a.client, *userID)
	if err := m.Refresh(ctx); err != nil {
		return err
	}

	action := "list"
	if len(rest) > 0 {
		action = rest[0]
	}
	switch action {
	case "list":
	case "add", "remove":
		if len(rest) < 2 {
			return fmt.Errorf("%s requires a channel id", action)
		}
		channelID, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid channel id %q", rest[1])
		}
		if action == "add" {
			err = m.Add(ctx, channelID)
		} else {
			err = m.Remove(ctx, channelID)
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	fmt.Fprintf(a.out, "用户 %d 专属分组 %s，已绑定 %d 个渠道\n", m.UserID(), m.GroupName(), m.Bindings().Len())
	for _, b := range m.Bindings().Bindings() {
		name := "-"
		if b.ChannelInfo != nil {
			name = b.ChannelInfo.Name
		}
		fmt.Fprintf(a.out, "  #%d %s\n", b.ChannelID, name)
	}
	return nil
}

func (a *app) sticky(ctx context.Context, args []string) error {
	action := "stats"
	if len(args) > 0 {
		action = args[0]
	}
	if action == "stats" {
		stats, err := a.client.StickySessionStats(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tNAME\tSESSIONS\tMAX\tTTL\tTODAY")
		for _, s := range stats {
			max := "不限"
			if s.MaxCount > 0 {
				max = strconv.Itoa(s.MaxCount)
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%dm\t%d\n", s.ChannelID, s.ChannelName, s.SessionCount,
				max, s.TTLMinutes, s.DailyBindCount)
		}
		return w.Flush()
	}

	if len(args) < 2 {
		return fmt.Errorf("%s requires a channel id", action)
	}
	channelID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q", args[1])
	}

	switch action {
	case "list":
		info, err := a.client.StickySessions(ctx, channelID)
		if err != nil {
			return err
		}
		if !info.Enabled {
			fmt.Fprintf(a.out, "渠道 %d 未开启粘性会话\n", channelID)
			return nil
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HASH\tGROUP\tMODEL\tUSER\tTOKEN\tCREATED\tTTL")
		for _, s := range info.Sessions {
			created := time.Unix(s.CreatedAt, 0).In(a.loc).Format("01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%ds\n", s.SessionHash, s.Group, s.Model, s.UserID, s.TokenName, created, s.TTL)
		}
		return w.Flush()
	case "release":
		if len(args) < 3 {
			return errors.New("release requires a session hash")
		}
		if err := a.client.ReleaseStickySession(ctx, channelID, args[2]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "已释放")
	case "release-all":
		n, err := a.client.ReleaseAllStickySessions(ctx, channelID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "已释放 %d 条会话\n", n)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (a *app) logs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	var q dto.LogQuery
	fs.IntVar(&q.Type, "type", 5, "Log type")
	fs.StringVar(&q.Username, "username", "", "Username")
	fs.StringVar(&q.ModelName, "model", "", "Model name")
	fs.StringVar(&q.ErrorCode, "error-code", "", "Error code")
	fs.Int64Var(&q.Channel, "channel", 0, "Channel id")
	page := fs.Int("p", 1, "Page")
	size := fs.Int("size", 20, "Page size")
	hide := fs.String("hide", "", "Comma separated columns to hide")
	show := fs.String("show", "", "Comma separated columns to show")
	_ = fs.Parse(args)

	if *hide != "" || *show != "" {
		for _, col := range splitList(*hide) {
			a.prefs.Columns.SetVisible(col, false)
		}
		for _, col := range splitList(*show) {
			a.prefs.Columns.SetVisible(col, true)
		}
		if err := a.prefs.Save(); err != nil {
			return err
		}
	}

	result, err := a.client.Logs(ctx, q, *page, *size)
	if err != nil {
		return err
	}

	cols := a.prefs.Columns.VisibleColumns()
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, l := range result.Items {
		row := make([]string, 0, len(cols))
		for _, col := range cols {
			switch col {
			case "time":
				row = append(row, time.Unix(l.CreatedAt, 0).In(a.loc).Format("01-02 15:04:05"))
			case "username":
				row = append(row, l.Username)
			case "token_name":
				row = append(row, l.TokenName)
			case "model_name":
				row = append(row, l.ModelName)
			case "channel":
				row = append(row, strconv.FormatInt(l.ChannelID, 10))
			case "group":
				row = append(row, l.Group)
			case "ip":
				row = append(row, l.IP)
			case "error_code":
				row = append(row, l.ErrorCode)
			case "status_code":
				row = append(row, strconv.Itoa(l.StatusCode))
			case "error_type":
				row = append(row, l.ErrorType)
			case "content":
				row = append(row, l.Content)
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "共 %d 条\n", result.Total)
	return nil
}

func (a *app) page(ctx context.Context) error {
	if err := a.prefs.Page.Sync(ctx, a.client); err != nil {
		return err
	}
	if err := a.prefs.Save(); err != nil {
		return err
	}
	if !a.prefs.Page.Enabled() {
		fmt.Fprintln(a.out, "未配置订阅页面")
		return nil
	}
	fmt.Fprintln(a.out, a.prefs.Page.SubscriptionHTML)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
