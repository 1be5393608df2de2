package handlers

import (
	"context"
	"fmt"
	"strings"

	"unibook-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Scanner is the control surface of the scan loop, satisfied by
// checker.Checker.
type Scanner interface {
	Start()
	Stop()
	IsRunning() bool
	SetCourses(courses []types.Course)
}

// Store is what the commands read, satisfied by storage.Store.
type Store interface {
	GetCourses(ctx context.Context, ids []int) ([]types.Course, error)
	ListActiveBookings(ctx context.Context) ([]types.ActiveBooking, error)
}

// Catalog cache; satisfied by storage.Cache. May be nil.
type Cache interface {
	GetCourses(ctx context.Context, ids []int) ([]types.Course, error)
	SaveCourses(ctx context.Context, ids []int, courses []types.Course) error
}

// sender is the slice of tgbotapi.BotAPI we use; lets tests fake replies.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Broadcaster mirrors notifier.Broadcaster for the scan announcements.
type Broadcaster interface {
	Broadcast(text string)
}

// Handler routes bot commands from whitelisted chats.
type Handler struct {
	bot       sender
	scanner   Scanner
	store     Store
	cache     Cache
	notifier  Broadcaster
	courseIDs []int
	allowed   map[int64]bool
	log       *zap.Logger
}

func New(bot *tgbotapi.BotAPI, scanner Scanner, store Store, cache Cache, notifier Broadcaster, courseIDs []int, allowedChatIDs []int64, log *zap.Logger) *Handler {
	return newHandler(bot, scanner, store, cache, notifier, courseIDs, allowedChatIDs, log)
}

func newHandler(bot sender, scanner Scanner, store Store, cache Cache, notifier Broadcaster, courseIDs []int, allowedChatIDs []int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}
	return &Handler{
		bot:       bot,
		scanner:   scanner,
		store:     store,
		cache:     cache,
		notifier:  notifier,
		courseIDs: courseIDs,
		allowed:   allowed,
		log:       log,
	}
}

// IsAllowed reports whether a chat is on the whitelist.
func (h *Handler) IsAllowed(chatID int64) bool {
	return h.allowed[chatID]
}

func (h *Handler) ReplyUnauthorized(msg *tgbotapi.Message) {
	h.reply(msg.Chat.ID, "Utente non autorizzato")
}

func (h *Handler) HandleStart(msg *tgbotapi.Message) {
	text := "Ciao! Tengo d'occhio i corsi e prenoto i posti appena si liberano.\n\n" +
		"Comandi disponibili:\n" +
		"/attiva_prenotazioni — avvia la scansione\n" +
		"/ferma_prenotazioni — ferma la scansione\n" +
		"/stato — stato della scansione\n" +
		"/lista_prenotazioni — prenotazioni attive"
	h.reply(msg.Chat.ID, text)
}

// HandleEnable loads the watched courses from the catalog (cache first) and
// starts the scan loop. The activation is announced to every recipient, not
// just the requesting chat.
func (h *Handler) HandleEnable(msg *tgbotapi.Message) {
	if h.scanner.IsRunning() {
		h.reply(msg.Chat.ID, "La scansione è già attiva.")
		return
	}

	courses, err := h.loadCourses(context.Background())
	if err != nil {
		h.log.Error("course catalog load failed", zap.Error(err))
		h.reply(msg.Chat.ID, "Errore nel caricamento dei corsi, riprova.")
		return
	}
	if len(courses) == 0 {
		h.reply(msg.Chat.ID, "Nessun corso configurato da tenere d'occhio.")
		return
	}

	h.scanner.SetCourses(courses)
	h.scanner.Start()
	h.notifier.Broadcast("Scansione avviata")
}

// HandleDisable stops the scan loop and announces it to every recipient.
func (h *Handler) HandleDisable(msg *tgbotapi.Message) {
	if !h.scanner.IsRunning() {
		h.reply(msg.Chat.ID, "La scansione non è attiva.")
		return
	}
	h.scanner.Stop()
	h.notifier.Broadcast("Scansione arrestata")
}

func (h *Handler) HandleStatus(msg *tgbotapi.Message) {
	if h.scanner.IsRunning() {
		h.reply(msg.Chat.ID, "Scansione attiva.")
	} else {
		h.reply(msg.Chat.ID, "Scansione ferma.")
	}
}

// HandleBookings lists future booked slots, soonest first.
func (h *Handler) HandleBookings(msg *tgbotapi.Message) {
	bookings, err := h.store.ListActiveBookings(context.Background())
	if err != nil {
		h.log.Error("active bookings query failed", zap.Error(err))
		h.reply(msg.Chat.ID, "Errore nel caricamento delle prenotazioni.")
		return
	}
	if len(bookings) == 0 {
		h.reply(msg.Chat.ID, "Nessuna prenotazione attiva")
		return
	}

	var b strings.Builder
	for _, booking := range bookings {
		b.WriteString(fmt.Sprintf("\n- %s, %s, %s",
			booking.CourseName,
			booking.StartTime.Format("02/01/2006 15:04"),
			booking.Room))
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.String())
	reply.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.bot.Send(reply); err != nil {
		h.log.Warn("reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (h *Handler) HandleUnknown(msg *tgbotapi.Message) {
	h.reply(msg.Chat.ID, "Comando sconosciuto. Prova /start")
}

// loadCourses resolves the configured course IDs against the catalog,
// going through the cache when one is wired.
func (h *Handler) loadCourses(ctx context.Context) ([]types.Course, error) {
	if h.cache != nil {
		if courses, err := h.cache.GetCourses(ctx, h.courseIDs); err == nil && courses != nil {
			return courses, nil
		}
	}

	courses, err := h.store.GetCourses(ctx, h.courseIDs)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SaveCourses(ctx, h.courseIDs, courses); err != nil {
			h.log.Warn("course cache write failed", zap.Error(err))
		}
	}
	return courses, nil
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
