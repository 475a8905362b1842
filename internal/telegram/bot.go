package telegram

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram API the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Deps are the services behind the chat commands. Shopping and Usage may
// be nil.
type Deps struct {
	Plans    *planner.Service
	Ratings  *rating.Repository
	Shopping *shopping.Repository
	Sessions *SessionRepository
	Usage    *metrics.Store
	DataPath string
}

// Bot answers chat commands for allowed users.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	deps   Deps
	cfg    config.TelegramConfig
	log    *zap.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg config.TelegramConfig, deps Deps, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	b := New(api, deps, cfg, log)
	b.api = api
	b.log.Info("authorized on account", zap.String("username", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.WebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.WebhookURL, err)
	}
	b.log.Info("webhook set", zap.String("response", resp.Description))
	return b, nil
}

// New builds a bot around an existing sender.
func New(sender Sender, deps Deps, cfg config.TelegramConfig, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{sender: sender, deps: deps, cfg: cfg, log: log.Named("telegram")}
}

// Handler serves the webhook and a health check.
func (b *Bot) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if b.api == nil {
		http.Error(w, "bot not initialized", http.StatusServiceUnavailable)
		return
	}
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn("error parsing update", zap.Error(err))
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	go b.HandleMessage(context.Background(), update.Message)
}

func (b *Bot) allowed(userID int64) bool {
	return (userID != 0 && userID == b.cfg.AdminID) || slices.Contains(b.cfg.AllowedUserIDs, userID)
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", fields
	}
	cmd, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	return strings.ToLower(cmd), fields[1:]
}

// HandleMessage runs one chat command to completion.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if !b.allowed(msg.From.ID) {
		b.log.Warn("unauthorized access attempt", zap.Int64("user_id", msg.From.ID), zap.String("username", msg.From.UserName))
		return
	}

	cmd, args := parseCommand(msg.Text)
	switch cmd {
	case "suggest":
		b.handleSuggest(ctx, msg, args)
	case "latest":
		b.handleLatest(ctx, msg)
	case "shopping":
		b.handleShopping(ctx, msg)
	case "rate":
		b.handleRate(ctx, msg, args)
	case "ratings":
		b.handleRatings(ctx, msg, args)
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = "🥗 *AI Nutritionist*\n\n" +
	"/suggest age=30 gender=Male height=175 weight=70 activity=Moderate diet=Vegetarian budget=Low conditions=Diabetes\n" +
	"/latest: your last suggestion\n" +
	"/shopping: shopping list for your last suggestion\n" +
	"/rate <breakfast|lunch|dinner|snack> <1-5>\n" +
	"/ratings [YYYY-MM-DD]"

func (b *Bot) reply(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	sent, err := b.sender.Send(msg)
	if err != nil {
		b.log.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent, err
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := b.sender.Send(edit); err != nil {
		b.log.Warn("failed to edit reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func errorText(action string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error %s:*\n```\n%v\n```", action, safeErr)
}

func (b *Bot) session(ctx context.Context, userID int64) *Session {
	s, err := b.deps.Sessions.Get(ctx, userID)
	if err != nil {
		b.log.Warn("failed to load session", zap.Int64("user_id", userID), zap.Error(err))
	}
	if s == nil {
		s = &Session{UserID: userID}
	}
	return s
}

// handleSuggest composes a plan from key=value arguments, or from the
// profile of the previous /suggest when none are given.
func (b *Bot) handleSuggest(ctx context.Context, msg *tgbotapi.Message, args []string) {
	sess := b.session(ctx, msg.From.ID)

	var p profile.Profile
	switch {
	case len(args) > 0:
		parsed, err := profile.ParseKeyValues(args)
		if err != nil {
			b.reply(msg.Chat.ID, errorText("reading profile", err))
			return
		}
		p = parsed
	case sess.Profile != nil:
		p = *sess.Profile
	default:
		b.reply(msg.Chat.ID, helpText)
		return
	}
	if err := p.Validate(); err != nil {
		b.reply(msg.Chat.ID, errorText("reading profile", err))
		return
	}

	sent, err := b.reply(msg.Chat.ID, "🧑‍🍳 *Thinking...* \n(Estimating calories and picking your meals)")
	if err != nil {
		return
	}

	g, err := b.deps.Plans.Compose(ctx, p)
	if err != nil {
		b.log.Error("error generating plan", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.edit(msg.Chat.ID, sent.MessageID, errorText("generating plan", err))
		return
	}

	sess.LastPlanID = g.ID
	sess.Profile = &p
	sess.Recipes = make(map[shared.Slot]string, len(g.Plan.Meals))
	for slot, blk := range g.Plan.Meals {
		sess.Recipes[slot] = blk.Recipe
	}
	if err := b.deps.Sessions.Save(ctx, sess); err != nil {
		b.log.Warn("failed to save session", zap.Int64("user_id", msg.From.ID), zap.Error(err))
	}

	b.edit(msg.Chat.ID, sent.MessageID, formatPlanMarkdown(g.Plan))
}

func (b *Bot) handleLatest(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.session(ctx, msg.From.ID)
	if sess.LastPlanID == "" {
		b.reply(msg.Chat.ID, "No suggestion yet. Try /suggest.")
		return
	}
	plan, err := b.deps.Plans.Plans.Get(ctx, planner.KindAI, sess.LastPlanID)
	if err != nil {
		b.reply(msg.Chat.ID, errorText("loading plan", err))
		return
	}
	b.reply(msg.Chat.ID, formatPlanMarkdown(plan))
}

func (b *Bot) handleShopping(ctx context.Context, msg *tgbotapi.Message) {
	sess := b.session(ctx, msg.From.ID)
	if sess.LastPlanID == "" {
		b.reply(msg.Chat.ID, "No suggestion yet. Try /suggest.")
		return
	}
	plan, err := b.deps.Plans.Plans.Get(ctx, planner.KindAI, sess.LastPlanID)
	if err != nil {
		b.reply(msg.Chat.ID, errorText("loading plan", err))
		return
	}

	list := shopping.Build(plan)
	if b.deps.Shopping != nil {
		stored, err := b.deps.Shopping.ForPlan(ctx, plan)
		if err != nil {
			b.log.Warn("failed to store shopping list", zap.String("plan_id", plan.ID), zap.Error(err))
		} else {
			list = *stored
		}
	}
	b.reply(msg.Chat.ID, formatShoppingList(&list))
}

// handleRate rates a slot of today's plan. The rating is linked to the
// user's last suggestion when there is one.
func (b *Bot) handleRate(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 2 {
		b.reply(msg.Chat.ID, "Usage: /rate <breakfast|lunch|dinner|snack> <1-5>")
		return
	}
	slot, ok := shared.ParseSlot(args[0])
	if !ok {
		b.reply(msg.Chat.ID, fmt.Sprintf("Unknown meal %q.", args[0]))
		return
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf("Rating must be a number, got %q.", args[1]))
		return
	}

	sess := b.session(ctx, msg.From.ID)
	stored, err := b.deps.Ratings.Set(ctx, rating.Rating{
		MealSlot: slot,
		Value:    value,
		Recipe:   sess.Recipes[slot],
		PlanKind: string(planner.KindAI),
		PlanID:   sess.LastPlanID,
	})
	if err != nil {
		b.reply(msg.Chat.ID, errorText("saving rating", err))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("⭐ Rated *%s* %.1f for %s.", stored.MealSlot, stored.Value, stored.Date))
}

func (b *Bot) handleRatings(ctx context.Context, msg *tgbotapi.Message, args []string) {
	date := ""
	if len(args) > 0 {
		date = args[0]
	}
	byslot, err := b.deps.Ratings.ForDate(ctx, date)
	if err != nil {
		b.reply(msg.Chat.ID, errorText("loading ratings", err))
		return
	}
	if date == "" {
		date = b.deps.Ratings.Today()
	}
	b.reply(msg.Chat.ID, formatRatings(date, byslot))
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminID || b.cfg.AdminID == 0 {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	var usage []metrics.DailyUsage
	if b.deps.Usage != nil {
		var err error
		usage, err = b.deps.Usage.GetDailyUsage(ctx, 7)
		if err != nil {
			b.log.Error("failed to fetch usage", zap.Error(err))
			b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
			return
		}
	}
	b.reply(msg.Chat.ID, formatMetrics(usage, metrics.GetSysHealth(b.deps.DataPath)))
}

func formatPlanMarkdown(plan *planner.MealPlan) string {
	var pb strings.Builder
	pb.WriteString("🥗 *Your Meal Plan*")
	if plan.PredictedCalories != nil {
		pb.WriteString(fmt.Sprintf(" (~%.0f kcal)", *plan.PredictedCalories))
	}
	pb.WriteString("\n\n")

	for _, slot := range shared.Slots {
		blk := plan.Meals[slot]
		if blk == nil {
			continue
		}
		pb.WriteString(fmt.Sprintf("*%s*: %s\n", slot, blk.Recipe))
		if ings := blk.Ingredients(); len(ings) > 0 {
			pb.WriteString(fmt.Sprintf("_%s_\n", strings.Join(ings, ", ")))
		}
		pb.WriteString("\n")
	}

	if len(plan.Validation.Warnings) > 0 {
		pb.WriteString("⚠️ *Health Warnings*\n")
		for _, w := range plan.Validation.Warnings {
			pb.WriteString(fmt.Sprintf("• %s / %s (%s): %s\n", w.MealSlot, w.Disease, w.Severity, strings.Join(w.Reasons, "; ")))
			for _, s := range w.Suggestions {
				pb.WriteString(fmt.Sprintf("  ↳ %s\n", s))
			}
		}
	} else {
		pb.WriteString("✅ No health warnings\n")
	}
	return pb.String()
}

func formatShoppingList(list *shopping.List) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	if len(list.Items) == 0 {
		sb.WriteString("_No ingredients known for this plan._")
		return sb.String()
	}
	for _, it := range list.Items {
		meals := make([]string, len(it.Meals))
		for i, m := range it.Meals {
			meals[i] = string(m)
		}
		sb.WriteString(fmt.Sprintf("• %s _(%s)_\n", it.Name, strings.Join(meals, ", ")))
	}
	return sb.String()
}

func formatRatings(date string, byslot map[shared.Slot]rating.Rating) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⭐ *Ratings for %s*\n\n", date))
	if len(byslot) == 0 {
		sb.WriteString("_No ratings yet_\n")
		return sb.String()
	}
	slots := make([]shared.Slot, 0, len(byslot))
	for s := range byslot {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slices.Index(shared.Slots, slots[i]) < slices.Index(shared.Slots, slots[j])
	})
	for _, s := range slots {
		rt := byslot[s]
		sb.WriteString(fmt.Sprintf("• *%s*: %.1f", s, rt.Value))
		if rt.Recipe != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", rt.Recipe))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}

// ListenAndServe serves the webhook until ctx is cancelled.
func (b *Bot) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: b.Handler()}
	errCh := make(chan error, 1)
	go func() {
		b.log.Info("webhook server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
