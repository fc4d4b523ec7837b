package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/stats"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

const (
	guestHelp = `Доступные команды:
/whoami - Показать свой telegram id для привязки к учётной записи
/help - Показать это сообщение`

	staffHelp = `Доступные команды:
/today - Кто сдал посещаемость сегодня
/stats [месяц] [год] - Итоги за месяц
/help - Показать это сообщение`

	deputyHelp = staffHelp + `

Для завуча:
/token <класс> <срок> - Выдать ссылку-токен для замены, срок вида 90m, 4h, 2d, 1w
/tokens - Последние токены
/revoke <id> - Отозвать токен

Примеры:
/token 5А 4h
/stats 9 2025`
)

type commandHandler func(*tgbotapi.Message, *app.Access) error

func (b *Bot) routeStaffCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"today": b.handleToday,
		"stats": b.handleStats,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeDeputyCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"token":  b.handleToken,
		"tokens": b.handleTokens,
		"revoke": b.handleRevoke,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.From == nil {
		b.sendHelp(msg.Chat.ID)
		return
	}

	ctx := context.Background()
	cmd := msg.Command()

	access, err := b.access(ctx, msg.From.ID)
	if err != nil {
		logger.Error.Printf("Failed to resolve telegram user %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, "Не удалось проверить учётную запись, попробуйте позже")
		return
	}

	switch cmd {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, helpText(access))
		return
	case "whoami":
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Ваш telegram id: %d", msg.From.ID))
		return
	}

	handler, ok := b.routeStaffCommands(cmd)
	if !ok && access != nil && access.IsDeputy() {
		handler, ok = b.routeDeputyCommands(cmd)
	}
	if !ok || access == nil {
		b.sendHelp(msg.Chat.ID)
		return
	}

	if err := handler(msg, access); err != nil {
		logger.Error.Printf("Command /%s from %s failed: %v", cmd, access.User.Username, err)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Ошибка: %v", err))
	}
}

func helpText(access *app.Access) string {
	switch {
	case access == nil:
		return guestHelp
	case access.IsDeputy():
		return deputyHelp
	default:
		return staffHelp
	}
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Используйте команды для взаимодействия с ботом. Отправьте /help для списка команд.")
}

func (b *Bot) handleToday(msg *tgbotapi.Message, access *app.Access) error {
	text, err := b.todayText(context.Background(), access, b.service.Calendar.Today())
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleStats(msg *tgbotapi.Message, access *app.Access) error {
	args := strings.Fields(msg.CommandArguments())
	var monthRaw, yearRaw string
	if len(args) > 0 {
		monthRaw = args[0]
	}
	if len(args) > 1 {
		yearRaw = args[1]
	}
	year, month := stats.Period(monthRaw, yearRaw, b.service.Calendar.Today())

	text, err := b.statsText(context.Background(), year, month)
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, text)
}

// watchedClasses are the classes a staff member sees in /today: every class
// for the deputy, their own classes for a teacher.
func (b *Bot) watchedClasses(ctx context.Context, access *app.Access) ([]models.ClassRoom, error) {
	if access.IsDeputy() {
		return b.service.Store.ListClassRooms(ctx)
	}
	return access.Classes, nil
}

func (b *Bot) todayText(ctx context.Context, access *app.Access, day time.Time) (string, error) {
	date := day.Format("02.01.2006")
	if !b.service.Calendar.IsSchoolDay(day) {
		return fmt.Sprintf("%s выходной, посещаемость не собирается", date), nil
	}

	classes, err := b.watchedClasses(ctx, access)
	if err != nil {
		return "", err
	}
	if len(classes) == 0 {
		return "За вами не закреплено ни одного класса", nil
	}

	ids := make([]int64, len(classes))
	for i, c := range classes {
		ids[i] = c.ID
	}
	summaries, err := b.service.Store.ListSummaries(ctx, store.SingleDay(day), ids)
	if err != nil {
		return "", fmt.Errorf("ошибка получения отчётов: %w", err)
	}
	byClass := make(map[int64]*models.AttendanceSummary, len(summaries))
	for i := range summaries {
		byClass[summaries[i].ClassRoomID] = &summaries[i]
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("Посещаемость на %s:\n\n", date))
	for _, class := range classes {
		s, ok := byClass[class.ID]
		if !ok {
			msg.WriteString(fmt.Sprintf("❌ %s: нет данных\n", class.Name))
			continue
		}
		msg.WriteString(fmt.Sprintf("✅ %s: присутствуют %d из %d, отсутствуют %d%s\n",
			class.Name,
			s.PresentCountReported,
			s.PresentCountAuto,
			s.TotalAbsent(),
			reasonBreakdown(s),
		))
	}
	msg.WriteString(fmt.Sprintf("\nСдали %d из %d", len(summaries), len(classes)))
	return msg.String(), nil
}

func reasonBreakdown(s *models.AttendanceSummary) string {
	var parts []string
	for _, r := range []struct {
		label string
		count int
	}{
		{"без уважительной", s.UnexcusedAbsentCount},
		{"ОРВИ", s.ORVICount},
		{"болезнь", s.OtherDiseaseCount},
		{"семейные", s.FamilyReasonCount},
	} {
		if r.count > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", r.label, r.count))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func (b *Bot) statsText(ctx context.Context, year int, month time.Month) (string, error) {
	report, err := b.service.Stats.MonthlyReport(ctx, year, month)
	if err != nil {
		return "", fmt.Errorf("ошибка построения статистики: %w", err)
	}

	var totals stats.Totals
	reported := 0
	for _, d := range report.Days {
		reported += d.ReportedCount
		totals.PresentReported += d.Totals.PresentReported
		totals.Unexcused += d.Totals.Unexcused
		totals.ORVI += d.Totals.ORVI
		totals.OtherDisease += d.Totals.OtherDisease
		totals.Family += d.Totals.Family
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("Статистика за %02d.%d\n\n", report.Month, report.Year))
	msg.WriteString(fmt.Sprintf("Учебных дней: %d\n", report.WorkingDays))
	msg.WriteString(fmt.Sprintf("Классов: %d, учеников: %d\n", report.TotalClasses, report.TotalStudents))
	msg.WriteString(fmt.Sprintf("Сдано отчётов: %d\n\n", reported))
	msg.WriteString(fmt.Sprintf("Без уважительной причины: %d\n", totals.Unexcused))
	msg.WriteString(fmt.Sprintf("ОРВИ: %d\n", totals.ORVI))
	msg.WriteString(fmt.Sprintf("Другие болезни: %d\n", totals.OtherDisease))
	msg.WriteString(fmt.Sprintf("Семейные обстоятельства: %d\n", totals.Family))

	if len(report.PerStudent) > 0 {
		msg.WriteString("\nЧаще всех пропускают без причины:\n")
		for i, s := range report.PerStudent {
			if i == 5 {
				break
			}
			msg.WriteString(fmt.Sprintf("👉🏻 %s (%s): %d\n", s.FullName, s.ClassName, s.AbsenceCount))
		}
	}
	return msg.String(), nil
}

var ttlUnits = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
}

// parseTTL reads a lifetime like 90m or 2d. A bare number is seconds.
func parseTTL(raw string) (int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("не указан срок действия")
	}
	unit := 1
	if mult, ok := ttlUnits[raw[len(raw)-1]]; ok {
		unit = mult
		raw = raw[:len(raw)-1]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("некорректный срок: %s", raw)
	}
	return n * unit, nil
}

func (b *Bot) handleToken(msg *tgbotapi.Message, access *app.Access) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return fmt.Errorf("использование: /token <класс> <срок>, например /token 5А 4h")
	}
	text, err := b.issueToken(context.Background(), access, args[0], args[1])
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) issueToken(ctx context.Context, access *app.Access, className, ttlRaw string) (string, error) {
	ttl, err := parseTTL(ttlRaw)
	if err != nil {
		return "", err
	}
	class, err := b.service.Store.GetClassRoomByName(ctx, className)
	if err != nil {
		return "", err
	}
	if class == nil {
		return "", fmt.Errorf("класс %s не найден", className)
	}

	issuer := access.User.ID
	raw, token, err := b.service.Tokens.Issue(ctx, class.ID, &issuer, ttl)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.TokenActionsTotal.WithLabelValues("issue", result).Inc()

	var ttlErr *app.TTLError
	switch {
	case errors.As(err, &ttlErr):
		return "", fmt.Errorf("срок должен быть от %d секунд до %d недель", app.MinTokenTTL, app.MaxTokenTTL/604800)
	case errors.Is(err, app.ErrNoTeacher):
		return "", fmt.Errorf("у класса %s нет активного классного руководителя", class.Name)
	case err != nil:
		return "", err
	}

	logger.Info.Printf("Token %d for class %s issued via bot by %s", token.ID, class.Name, access.User.Username)
	return fmt.Sprintf("✅ Токен #%d для класса %s\nДействует до %s\n\n%s",
		token.ID,
		class.Name,
		token.ExpiresAt.In(b.service.Calendar.Location()).Format("02.01.2006 15:04"),
		raw,
	), nil
}

func (b *Bot) handleTokens(msg *tgbotapi.Message, access *app.Access) error {
	tokens, err := b.service.Tokens.List(context.Background(), 10)
	if err != nil {
		return fmt.Errorf("ошибка получения токенов: %w", err)
	}
	return b.sendMessage(msg.Chat.ID, tokensText(tokens, time.Now(), b.service.Calendar.Location()))
}

func tokensText(tokens []models.SubstituteToken, now time.Time, loc *time.Location) string {
	if len(tokens) == 0 {
		return "Токенов пока нет"
	}
	var msg strings.Builder
	msg.WriteString("Последние токены:\n\n")
	for _, t := range tokens {
		status := "активен"
		switch {
		case t.RevokedAt != nil:
			status = "отозван"
		case !t.IsActive(now):
			status = "истёк"
		}
		msg.WriteString(fmt.Sprintf("#%d %s, до %s, %s\n",
			t.ID, t.ClassName, t.ExpiresAt.In(loc).Format("02.01.2006 15:04"), status))
	}
	return msg.String()
}

func (b *Bot) handleRevoke(msg *tgbotapi.Message, access *app.Access) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#"), 10, 64)
	if err != nil {
		return fmt.Errorf("использование: /revoke <id>")
	}

	err = b.service.Tokens.Revoke(context.Background(), id)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.TokenActionsTotal.WithLabelValues("revoke", result).Inc()

	switch {
	case errors.Is(err, app.ErrTokenNotFound):
		return fmt.Errorf("токен #%d не найден", id)
	case errors.Is(err, app.ErrAlreadyRevoked):
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Токен #%d уже отозван", id))
	case err != nil:
		return err
	}

	logger.Info.Printf("Token %d revoked via bot by %s", id, access.User.Username)
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Токен #%d отозван", id))
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
