package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cvandijck/card-generator/internal/preset"
	"github.com/cvandijck/card-generator/internal/session"
)

const cardCallbackPrefix = "card"

// customName marks a selection that came from free text instead of the
// catalog.
const customName = "Custom"

func builderText(draft session.Draft, presets *preset.Catalog, maxMembers int, menu string, await string) string {
	var b strings.Builder
	b.WriteString("🎄 Holiday Card Builder\n\n")

	b.WriteString(fmt.Sprintf("Members (%d/%d):\n", len(draft.Members), maxMembers))
	if len(draft.Members) == 0 {
		b.WriteString("(none yet)\n")
	}
	for i, m := range draft.Members {
		b.WriteString(fmt.Sprintf("%d) %s\n", i+1, memberSummary(i, m, 60)))
	}
	b.WriteString("\n")

	b.WriteString("Topic: " + topicLabel(draft) + "\n")
	b.WriteString("Scene: " + selectionLabel(draft.SceneName, draft.Scene, presets.DefaultScene()) + "\n")
	b.WriteString("Style: " + selectionLabel(draft.StyleName, draft.Style, presets.DefaultStyle()) + "\n")
	b.WriteString("Overlay: " + selectionLabel(draft.OverlayName, draft.Overlay, presets.DefaultOverlay()) + "\n")
	b.WriteString("Expand descriptions: " + onOff(draft.Expand) + "\n")
	b.WriteString("Resolution: " + resolutionLabel(draft.Resolution) + "\n")

	switch menu {
	case "members":
		b.WriteString("\nFamily members:\n")
		if len(draft.Members) == 0 {
			b.WriteString("(none yet)\n")
		}
		for i, m := range draft.Members {
			b.WriteString(fmt.Sprintf("%d) %s\n", i+1, memberSummary(i, m, 160)))
		}
	case "scene":
		b.WriteString("\nCurrent scene text:\n" + currentText(resolvedScene(draft, presets)) + "\n")
	case "style":
		b.WriteString("\nCurrent style text:\n" + currentText(resolvedStyle(draft, presets)) + "\n")
	case "overlay":
		b.WriteString("\nCurrent overlay text:\n" + currentText(resolvedOverlay(draft, presets)) + "\n")
	}

	switch await {
	case "scene":
		b.WriteString("\n✍️ Send the scene description now (cancel: /cancel).\n")
	case "style":
		b.WriteString("\n✍️ Send the style instructions now (cancel: /cancel).\n")
	case "overlay":
		b.WriteString("\n✍️ Send the overlay text now (cancel: /cancel).\n")
	case "topic":
		b.WriteString("\n✍️ Send the card topic now (cancel: /cancel).\n")
	default:
		switch draft.Phase {
		case session.PhaseSubmitting:
			b.WriteString("\n⏳ Generating your card, hold on...\n")
		case session.PhaseSucceeded:
			b.WriteString("\n✅ Card delivered. Change anything and generate again.\n")
		case session.PhaseFailed:
			b.WriteString("\n❌ The last attempt failed. Adjust the draft and try again.\n")
		default:
			b.WriteString("\n📷 Send photos captioned \"Name - description\" to add members.\n")
		}
	}

	return strings.TrimSpace(b.String())
}

func builderKeyboard(ownerID int64, draft session.Draft, presets *preset.Catalog, menu string) tgbotapi.InlineKeyboardMarkup {
	switch menu {
	case "scene":
		return sceneKeyboard(ownerID, draft, presets)
	case "style":
		return styleKeyboard(ownerID, draft, presets)
	case "overlay":
		return overlayKeyboard(ownerID, draft, presets)
	case "members":
		return membersKeyboard(ownerID, draft)
	default:
		return mainKeyboard(ownerID, draft)
	}
}

func mainKeyboard(ownerID int64, draft session.Draft) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🎬 Scene", cb(ownerID, "menu", "scene")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Style", cb(ownerID, "menu", "style")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("✨ Overlay", cb(ownerID, "menu", "overlay")),
			tgbotapi.NewInlineKeyboardButtonData("Topic", cb(ownerID, "topic")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Expand: "+onOff(draft.Expand), cb(ownerID, "expand")),
			tgbotapi.NewInlineKeyboardButtonData("Size: "+resolutionLabel(draft.Resolution), cb(ownerID, "res")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("👪 Members (%d)", len(draft.Members)), cb(ownerID, "menu", "members")),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Generate", cb(ownerID, "generate")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
			tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
		},
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func sceneKeyboard(ownerID int64, draft session.Draft, presets *preset.Catalog) tgbotapi.InlineKeyboardMarkup {
	rows := presetRows(ownerID, "scene", presets.Scenes, selectedName(draft.SceneName, presets.DefaultScene()))
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cb(ownerID, "custom", "scene")),
			tgbotapi.NewInlineKeyboardButtonData("✨ Enhance", cb(ownerID, "enhance", "scene")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func styleKeyboard(ownerID int64, draft session.Draft, presets *preset.Catalog) tgbotapi.InlineKeyboardMarkup {
	rows := presetRows(ownerID, "style", presets.Styles, selectedName(draft.StyleName, presets.DefaultStyle()))
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cb(ownerID, "custom", "style")),
			tgbotapi.NewInlineKeyboardButtonData("✨ Enhance", cb(ownerID, "enhance", "style")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func overlayKeyboard(ownerID int64, draft session.Draft, presets *preset.Catalog) tgbotapi.InlineKeyboardMarkup {
	rows := presetRows(ownerID, "overlay", presets.Overlays, selectedName(draft.OverlayName, presets.DefaultOverlay()))
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cb(ownerID, "custom", "overlay")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
		},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func membersKeyboard(ownerID int64, draft session.Draft) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if len(draft.Members) > 0 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🗑 Remove last", cb(ownerID, "member_pop")),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear all", cb(ownerID, "members_clear")),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// presetRows renders the catalog section two buttons per row, with the
// selected entry marked. Callback data carries the list index so long preset
// names stay inside Telegram's 64-byte limit. Entries named like the custom
// option are skipped: the dedicated button covers them.
func presetRows(ownerID int64, action string, list []preset.Preset, selected string) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, p := range list {
		if p.Name == customName {
			continue
		}

		label := p.Name
		if p.Name == selected {
			label = "✅ " + label
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, action, strconv.Itoa(i))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", cardCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func memberSummary(index int, m session.Member, max int) string {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = fmt.Sprintf("Person %d", index+1)
	}
	description := strings.TrimSpace(m.Description)
	if description == "" {
		return name
	}
	return name + " - " + truncateLine(description, max)
}

func topicLabel(draft session.Draft) string {
	if strings.TrimSpace(draft.Topic) == "" {
		return "Holiday (default)"
	}
	return draft.Topic
}

// selectionLabel names the active choice, falling back to the catalog default
// when nothing was picked yet.
func selectionLabel(name, text string, def preset.Preset) string {
	switch {
	case name == customName:
		return fmt.Sprintf("%s: %q", customName, truncateLine(text, 40))
	case name != "":
		return name
	case text != "":
		return fmt.Sprintf("%s: %q", customName, truncateLine(text, 40))
	}
	return def.Name + " (default)"
}

// selectedName resolves which catalog entry should carry the checkmark.
func selectedName(name string, def preset.Preset) string {
	if name == "" {
		return def.Name
	}
	return name
}

func currentText(text string) string {
	if strings.TrimSpace(text) == "" {
		return "(empty)"
	}
	return truncateLine(text, 300)
}

func resolutionLabel(resolution string) string {
	if resolution == "" {
		return "1K"
	}
	return resolution
}

func nextResolution(resolution string) string {
	switch resolution {
	case "2K":
		return "4K"
	case "4K":
		return "1K"
	default:
		return "2K"
	}
}

func resolvedScene(draft session.Draft, presets *preset.Catalog) string {
	if draft.SceneName == "" && draft.Scene == "" {
		return presets.DefaultScene().Text
	}
	return draft.Scene
}

func resolvedStyle(draft session.Draft, presets *preset.Catalog) string {
	if draft.StyleName == "" && draft.Style == "" {
		return presets.DefaultStyle().Text
	}
	return draft.Style
}

func resolvedOverlay(draft session.Draft, presets *preset.Catalog) string {
	if draft.OverlayName == "" && draft.Overlay == "" {
		return presets.DefaultOverlay().Text
	}
	return draft.Overlay
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
