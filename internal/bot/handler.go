package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/cvandijck/card-generator/internal/card"
	"github.com/cvandijck/card-generator/internal/gemini"
	"github.com/cvandijck/card-generator/internal/mediagroup"
	"github.com/cvandijck/card-generator/internal/preset"
	"github.com/cvandijck/card-generator/internal/session"
	"github.com/cvandijck/card-generator/internal/telegram"
	"github.com/cvandijck/card-generator/pkg/metrics"
)

const cardFilename = "holiday_card.png"

type Options struct {
	Telegram  *telegram.Client
	Generator *card.Generator
	Sessions  *session.Store
	Presets   *preset.Catalog
	Logger    *slog.Logger
}

// Handler drives the chat flow: photos and captions collect family members
// into the chat's draft, the inline menu adjusts scene, style, overlay and
// output options, and Generate renders the card.
type Handler struct {
	tg         *telegram.Client
	generator  *card.Generator
	sessions   *session.Store
	presets    *preset.Catalog
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator

	mu sync.Mutex
	ui map[int64]*uiState
}

// uiState is per-chat menu bookkeeping: which message carries the menu, which
// submenu is open, who owns the buttons, and what free-text input is awaited.
type uiState struct {
	MessageID int
	Menu      string
	Await     string
	OwnerID   int64
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:        opts.Telegram,
		generator: opts.Generator,
		sessions:  opts.Sessions,
		presets:   opts.Presets,
		logger:    logger,
		ui:        make(map[int64]*uiState),
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, username, msg)
	}

	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return h.handleDocument(ctx, chatID, userID, username, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, msg.Text)
	}

	return nil
}

// HandleMediaGroup receives a debounced Telegram album. Each photo becomes
// one family member with its own caption.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.processPhotos(ctx, group.ChatID, group.UserID, group.Photos); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		if err := h.tg.SendText(chatID,
			"🎄 Holiday Card Generator\n\n"+
				"Send me photos of your family members and I'll draw everyone into one holiday card.\n\n"+
				"Caption each photo like \"Anna - loves skiing, red coat\" to name and describe the person. "+
				"Albums work too: every photo in the album becomes one family member.\n\n"+
				"Commands:\n"+
				"/card - Open the card builder\n"+
				"/presets - List scene, style and overlay presets\n"+
				"/cancel - Cancel pending text input\n"+
				"/clear - Discard the current draft\n"+
				"/help - Help",
		); err != nil {
			return err
		}
		h.updateUI(chatID, func(st *uiState) {
			st.OwnerID = userID
			st.Menu = "main"
			st.Await = ""
		})
		return h.renderUI(chatID, false)
	case "help":
		return h.tg.SendText(chatID,
			"🎄 How it works\n\n"+
				"1. Send photos of your family members, one person per photo. "+
				"Caption each photo \"Name - description\"; the description is optional.\n"+
				"2. Open /card and pick a scene, a style and an overlay text, or write your own.\n"+
				"3. Press Generate. The finished card arrives as a photo plus a full-quality PNG file.\n\n"+
				"Extras:\n"+
				"- Expand: an AI pre-pass rewrites each description from the photo for a closer likeness.\n"+
				"- Enhance (in the scene and style menus): expands your short text into detailed instructions.\n"+
				"- Size: output resolution, 1K, 2K or 4K.",
		)
	case "card":
		h.updateUI(chatID, func(st *uiState) {
			st.OwnerID = userID
			st.Menu = "main"
		})
		return h.renderUI(chatID, false)
	case "presets":
		return h.tg.SendText(chatID, presetListText(h.presets))
	case "cancel":
		st := h.updateUI(chatID, func(st *uiState) { st.Await = "" })
		if st.OwnerID == 0 {
			return h.tg.SendText(chatID, "Nothing to cancel.")
		}
		if err := h.tg.SendText(chatID, "Input cancelled."); err != nil {
			return err
		}
		return h.renderUI(chatID, true)
	case "clear":
		h.sessions.Clear(chatID)
		h.dropUI(chatID)
		return h.tg.SendText(chatID, "🗑 Draft discarded. Send photos to start a new card.")
	default:
		return h.tg.SendText(chatID, "Unknown command. /help lists what I can do.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]
	return h.intakePhoto(ctx, chatID, userID, username, msg, photo.FileID)
}

// handleDocument accepts photos sent as uncompressed files.
func (h *Handler) handleDocument(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	return h.intakePhoto(ctx, chatID, userID, username, msg, msg.Document.FileID)
}

func (h *Handler) intakePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message, fileID string) error {
	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.processPhotos(ctx, chatID, userID, []mediagroup.Photo{{FileID: fileID, Caption: msg.Caption}})
}

func (h *Handler) processPhotos(ctx context.Context, chatID int64, userID int64, photos []mediagroup.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	h.tg.SendTyping(chatID)

	type downloadedPhoto struct {
		Data []byte
		Mime string
	}

	downloads := make([]downloadedPhoto, len(photos))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range photos {
		i := i
		fileID := p.FileID
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			downloads[i] = downloadedPhoto{Data: data, Mime: mimeType}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please send it again.")
	}

	members := make([]session.Member, len(photos))
	for i, p := range photos {
		name, description := ParseCaption(p.Caption)
		members[i] = session.Member{
			Name:        name,
			Description: description,
			Photo:       downloads[i].Data,
			PhotoMime:   downloads[i].Mime,
		}
	}

	_, taken := h.sessions.AddMembers(chatID, members...)
	if taken < len(members) {
		_ = h.tg.SendText(chatID, fmt.Sprintf(
			"⚠️ Added %d of %d photos: a card holds at most %d family members.",
			taken, len(members), h.sessions.MaxMembers()))
	}

	h.updateUI(chatID, func(st *uiState) {
		if st.OwnerID == 0 {
			st.OwnerID = userID
		}
		st.Menu = "main"
	})
	return h.renderUI(chatID, false)
}

// handleText only consumes messages the menu asked for; everything else gets
// a pointer at the photo flow.
func (h *Handler) handleText(ctx context.Context, chatID int64, text string) error {
	st := h.uiFor(chatID)
	if st.Await == "" {
		return h.tg.SendText(chatID, "📷 Send photos with captions to add family members, or /card to open the builder.")
	}

	value := strings.TrimSpace(text)
	if value == "" {
		return nil
	}

	h.sessions.Update(chatID, func(d *session.Draft) {
		switch st.Await {
		case "scene":
			d.Scene = value
			d.SceneName = customName
		case "style":
			d.Style = value
			d.StyleName = customName
		case "overlay":
			d.Overlay = value
			d.OverlayName = customName
		case "topic":
			d.Topic = value
		}
	})

	h.updateUI(chatID, func(st *uiState) {
		st.Await = ""
		st.Menu = "main"
	})
	return h.renderUI(chatID, false)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, cardCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else. /card opens your own.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	h.updateUI(chatID, func(st *uiState) {
		st.MessageID = msgID
		st.OwnerID = ownerID
	})

	switch action {
	case "menu":
		if len(args) >= 1 {
			h.updateUI(chatID, func(st *uiState) { st.Menu = args[0] })
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
	case "scene", "style", "overlay":
		note := ""
		if len(args) >= 1 {
			if idx, err := strconv.Atoi(args[0]); err == nil {
				if p, ok := h.selectPreset(chatID, action, idx); ok {
					note = p.Name
				}
			}
		}
		_ = h.tg.AnswerCallback(q.ID, note, false)
		h.updateUI(chatID, func(st *uiState) { st.Menu = "main" })
	case "custom":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		if len(args) >= 1 {
			h.updateUI(chatID, func(st *uiState) {
				st.Await = args[0]
				st.Menu = "main"
			})
			_ = h.tg.SendText(chatID, awaitPrompt(args[0]))
		}
	case "topic":
		h.updateUI(chatID, func(st *uiState) {
			st.Await = "topic"
			st.Menu = "main"
		})
		_ = h.tg.AnswerCallback(q.ID, "", false)
		_ = h.tg.SendText(chatID, awaitPrompt("topic"))
	case "expand":
		draft := h.sessions.Update(chatID, func(d *session.Draft) { d.Expand = !d.Expand })
		_ = h.tg.AnswerCallback(q.ID, "Expand "+onOff(draft.Expand), false)
	case "res":
		draft := h.sessions.Update(chatID, func(d *session.Draft) {
			d.Resolution = nextResolution(d.Resolution)
		})
		_ = h.tg.AnswerCallback(q.ID, draft.Resolution, false)
	case "enhance":
		if len(args) >= 1 {
			_ = h.tg.AnswerCallback(q.ID, "Enhancing…", false)
			if err := h.enhanceDraft(ctx, chatID, args[0]); err != nil {
				return err
			}
		}
	case "member_pop":
		h.sessions.Update(chatID, func(d *session.Draft) {
			if len(d.Members) > 0 {
				d.Members = d.Members[:len(d.Members)-1]
			}
		})
		_ = h.tg.AnswerCallback(q.ID, "Removed", false)
	case "members_clear":
		h.sessions.Update(chatID, func(d *session.Draft) { d.Members = nil })
		_ = h.tg.AnswerCallback(q.ID, "Cleared", false)
	case "reset":
		h.sessions.Clear(chatID)
		h.updateUI(chatID, func(st *uiState) {
			st.Menu = "main"
			st.Await = ""
		})
		_ = h.tg.AnswerCallback(q.ID, "Draft reset", false)
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "Closed", false)
		_ = h.tg.EditText(chatID, msgID, "🎄 Card builder closed. /card reopens it.")
		h.updateUI(chatID, func(st *uiState) {
			st.MessageID = 0
			st.Await = ""
			st.Menu = "main"
		})
		return nil
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.generateCard(ctx, chatID); err != nil {
			return err
		}
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	return h.renderUI(chatID, true)
}

func (h *Handler) selectPreset(chatID int64, section string, idx int) (preset.Preset, bool) {
	var list []preset.Preset
	switch section {
	case "scene":
		list = h.presets.Scenes
	case "style":
		list = h.presets.Styles
	case "overlay":
		list = h.presets.Overlays
	}
	if idx < 0 || idx >= len(list) {
		return preset.Preset{}, false
	}

	p := list[idx]
	h.sessions.Update(chatID, func(d *session.Draft) {
		switch section {
		case "scene":
			d.Scene, d.SceneName = p.Text, p.Name
		case "style":
			d.Style, d.StyleName = p.Text, p.Name
		case "overlay":
			d.Overlay, d.OverlayName = p.Text, p.Name
		}
	})
	return p, true
}

// enhanceDraft expands the draft's scene or style text through the model and
// stores the result as a custom selection. A failed call keeps the draft as
// it was.
func (h *Handler) enhanceDraft(ctx context.Context, chatID int64, kind string) error {
	draft := h.sessions.Snapshot(chatID)
	profiles := profilesText(draft)

	var text string
	var err error
	switch kind {
	case "scene":
		text, err = h.generator.Enhancer().EnhanceScene(ctx, card.SceneContext{
			Instructions: resolvedScene(draft, h.presets),
			Style:        resolvedStyle(draft, h.presets),
			Profiles:     profiles,
		})
	case "style":
		text, err = h.generator.Enhancer().EnhanceStyle(ctx, card.StyleContext{
			Instructions: resolvedStyle(draft, h.presets),
			Scene:        resolvedScene(draft, h.presets),
			Profiles:     profiles,
		})
	default:
		return nil
	}
	if err != nil {
		metrics.EnhancementFailures.WithLabelValues(kind).Inc()
		h.logger.Warn("enhancement failed", "kind", kind, "err", err)
		return h.tg.SendText(chatID, "⚠️ Could not expand the "+kind+" text right now. Keeping the current one.")
	}

	h.sessions.Update(chatID, func(d *session.Draft) {
		switch kind {
		case "scene":
			d.Scene, d.SceneName = text, customName
		case "style":
			d.Style, d.StyleName = text, customName
		}
	})
	return h.tg.SendText(chatID, "✨ Expanded "+kind+" text:\n\n"+text)
}

func (h *Handler) generateCard(ctx context.Context, chatID int64) error {
	snapshot := h.sessions.Snapshot(chatID)
	snapshotReq := buildRequest(snapshot, h.presets)
	if err := snapshotReq.Validate(); err != nil {
		return h.tg.SendText(chatID, "📷 Add at least one family member photo first, then press Generate.")
	}

	draft, err := h.sessions.BeginSubmit(chatID)
	if errors.Is(err, session.ErrBusy) {
		return h.tg.SendText(chatID, "⏳ A card is already being generated for this chat, hold on.")
	}
	if err != nil {
		return err
	}
	req := buildRequest(draft, h.presets)

	h.tg.SendUploadingPhoto(chatID)
	_ = h.tg.SendText(chatID, fmt.Sprintf(
		"🎨 Generating a %s card with %d family member(s), this can take a minute...",
		resolutionLabel(req.Resolution), len(req.Members)))

	start := time.Now()
	result, err := h.generator.Generate(ctx, req)
	metrics.GenerationDuration.WithLabelValues("bot").Observe(time.Since(start).Seconds())
	h.sessions.FinishSubmit(chatID, err)
	if err != nil {
		metrics.CardGenerations.WithLabelValues("bot", "error").Inc()
		h.logger.Error("card generation failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, generationErrorText(err))
	}
	metrics.CardGenerations.WithLabelValues("bot", "success").Inc()

	if err := h.tg.SendPhotoBytes(chatID, cardFilename, result.PNG, "✅ Your holiday card is ready!"); err != nil {
		return err
	}
	return h.tg.SendDocumentBytes(chatID, cardFilename, result.PNG, "Full-quality PNG, ready to print or share.")
}

func (h *Handler) renderUI(chatID int64, edit bool) error {
	st := h.uiFor(chatID)
	draft := h.sessions.Snapshot(chatID)

	text := builderText(draft, h.presets, h.sessions.MaxMembers(), st.Menu, st.Await)
	kb := builderKeyboard(st.OwnerID, draft, h.presets, st.Menu)

	if edit && st.MessageID != 0 {
		err := h.tg.EditTextWithKeyboard(chatID, st.MessageID, text, kb)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.updateUI(chatID, func(st *uiState) { st.MessageID = msgID })
	return nil
}

func (h *Handler) uiFor(chatID int64) uiState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.ui[chatID]; ok {
		return *st
	}
	return uiState{}
}

func (h *Handler) updateUI(chatID int64, fn func(*uiState)) uiState {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.ui[chatID]
	if !ok {
		st = &uiState{}
		h.ui[chatID] = st
	}
	fn(st)
	return *st
}

func (h *Handler) dropUI(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ui, chatID)
}

// buildRequest turns the chat's draft into a generation request. Untouched
// selections fall back to the catalog defaults.
func buildRequest(draft session.Draft, presets *preset.Catalog) card.Request {
	members := make([]card.Profile, len(draft.Members))
	for i, m := range draft.Members {
		members[i] = card.Profile{
			Name:        m.Name,
			Description: m.Description,
			Photo:       m.Photo,
			PhotoMime:   m.PhotoMime,
		}
	}

	return card.Request{
		Members:    members,
		Topic:      draft.Topic,
		Scene:      resolvedScene(draft, presets),
		Style:      resolvedStyle(draft, presets),
		Overlay:    resolvedOverlay(draft, presets),
		Expand:     draft.Expand,
		Resolution: draft.Resolution,
	}
}

func profilesText(draft session.Draft) string {
	lines := make([]string, 0, len(draft.Members))
	for _, m := range draft.Members {
		if strings.TrimSpace(m.Description) == "" {
			continue
		}
		lines = append(lines, "- "+strings.TrimSpace(m.Description))
	}
	return strings.Join(lines, "\n")
}

func awaitPrompt(kind string) string {
	switch kind {
	case "scene":
		return "✍️ Send the scene description as a message (cancel: /cancel)."
	case "style":
		return "✍️ Send the style instructions as a message (cancel: /cancel)."
	case "overlay":
		return "✍️ Send the overlay text as a message, e.g. \"Happy Holidays!\" (cancel: /cancel)."
	case "topic":
		return "✍️ Send the card topic as a message, e.g. \"Christmas\" (cancel: /cancel)."
	}
	return "✍️ Send the text as a message (cancel: /cancel)."
}

func presetListText(presets *preset.Catalog) string {
	var b strings.Builder
	b.WriteString("🎄 Available presets\n")

	sections := []struct {
		title string
		list  []preset.Preset
	}{
		{"Scenes", presets.Scenes},
		{"Styles", presets.Styles},
		{"Overlays", presets.Overlays},
	}
	for _, s := range sections {
		b.WriteString("\n" + s.title + ":\n")
		for _, p := range s.list {
			line := "- " + p.Name
			if p.Default {
				line += " (default)"
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\nPick them in /card, or send custom text via the Custom buttons.")
	return b.String()
}

func generationErrorText(err error) string {
	var blocked *gemini.BlockedError
	switch {
	case errors.As(err, &blocked):
		return fmt.Sprintf("🚫 The image service refused this request: %s. Adjust the scene or descriptions and try again.", blocked.Reason)
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛ The generation timed out. Please try again."
	}
	return "❌ Card generation failed. Please try again."
}
