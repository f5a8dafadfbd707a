package notify

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/graaaaa/reconcile/internal/store"
)

// Embed colors.
const (
	ColorGreen  = 0x57F287 // every group resolved
	ColorOrange = 0xE67E22 // some groups need review
)

// Discord API limits.
const (
	MaxEmbedsPerRequest = 10
	MaxFieldsPerEmbed   = 25
	maxListedKeys       = 10
)

// DiscordPayload represents a Discord webhook request body.
type DiscordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed.
type DiscordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// BuildPayloads renders a run as webhook payloads. The first embed carries
// the totals; per-tag counts follow as fields, spilling into extra embeds
// and payloads when they exceed the API limits.
func BuildPayloads(run store.Run) []DiscordPayload {
	sum := run.Summary

	color := ColorGreen
	if sum.Unresolved > 0 {
		color = ColorOrange
	}

	desc := fmt.Sprintf("**%d** events, **%d** duplicated insert ids, **%d** missing insert id\nResolved **%d**, needs review **%d**",
		sum.TotalEvents, sum.DuplicateInsertIDsCount, sum.MissingInsertIDs, sum.Resolved, sum.Unresolved)
	if run.Source != "" {
		desc += fmt.Sprintf("\nSource: `%s`", run.Source)
	}

	fields := tagFields(sum.DupeTypeCounts)
	if len(sum.AllDiffFields) > 0 {
		fields = append(fields, EmbedField{
			Name:  "Unexplained field differences",
			Value: truncateList(sum.AllDiffFields),
		})
	}

	var embeds []DiscordEmbed
	first := DiscordEmbed{
		Title:       "Reconcile run " + run.ID,
		Description: desc,
		Color:       color,
	}
	if !run.FinishedAt.IsZero() {
		first.Timestamp = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	for chunk := range slices.Chunk(fields, MaxFieldsPerEmbed) {
		if first.Title != "" {
			first.Fields = chunk
			embeds = append(embeds, first)
			first = DiscordEmbed{}
			continue
		}
		embeds = append(embeds, DiscordEmbed{Color: color, Fields: chunk})
	}
	if first.Title != "" {
		embeds = append(embeds, first)
	}

	return splitIntoPayloads(embeds)
}

// tagFields renders per-tag counts, largest first.
func tagFields(counts map[string]int) []EmbedField {
	tags := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	fields := make([]EmbedField, 0, len(tags))
	for _, tag := range tags {
		fields = append(fields, EmbedField{
			Name:   tag,
			Value:  strconv.Itoa(counts[tag]),
			Inline: true,
		})
	}
	return fields
}

func truncateList(items []string) string {
	if len(items) <= maxListedKeys {
		return "`" + strings.Join(items, "`, `") + "`"
	}
	return fmt.Sprintf("`%s` and %d more", strings.Join(items[:maxListedKeys], "`, `"), len(items)-maxListedKeys)
}

func splitIntoPayloads(embeds []DiscordEmbed) []DiscordPayload {
	var payloads []DiscordPayload
	for chunk := range slices.Chunk(embeds, MaxEmbedsPerRequest) {
		payloads = append(payloads, DiscordPayload{Embeds: chunk})
	}
	return payloads
}
