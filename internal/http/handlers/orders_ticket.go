package handlers

import (
	"fmt"
	"sort"
	"strings"
)

// ticketItemSource is one resolved order row feeding the kitchen ticket.
// Name already carries the preparation/variation/add-on wording.
type ticketItemSource struct {
	FoodItemID        int64
	Name              string
	CategoryID        int64
	CategoryName      string
	CategorySortOrder int32
	LiterLabel        *string
	SizeType          *string
	Quantity          int32
	PortionMultiplier *int32
	PortionUnit       *string
	Note              *string
}

// Line kinds on a printed ticket.
const (
	lineCategory  = "category"
	lineSignature = "signature"
	lineItem      = "item"
)

type ticketLine struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type ticketColumn struct {
	Lines []ticketLine `json:"lines"`
}

type ticketLayout struct {
	Columns        []ticketColumn `json:"columns"`
	LinesPerColumn int            `json:"linesPerColumn"`
}

type ticketOptions struct {
	LinesPerColumn int
	Columns        int
	HiddenItemIDs  map[int64]bool
	ItemOrder      []int64
}

// quantityLabel renders one row's quantity: the liter label times the count,
// big/small times the count, or a plain count with the item's portion
// multiplier appended when it has one.
func quantityLabel(src ticketItemSource) string {
	switch {
	case src.LiterLabel != nil:
		return fmt.Sprintf("%s × %d", *src.LiterLabel, src.Quantity)
	case src.SizeType != nil && *src.SizeType == sizeTypeBig:
		return fmt.Sprintf("גדול × %d", src.Quantity)
	case src.SizeType != nil && *src.SizeType == sizeTypeSmall:
		return fmt.Sprintf("קטן × %d", src.Quantity)
	default:
		label := fmt.Sprintf("× %d", src.Quantity)
		if src.PortionMultiplier != nil && *src.PortionMultiplier > 1 {
			unit := derefString(src.PortionUnit)
			if unit == "" {
				unit = "יח'"
			}
			label = fmt.Sprintf("%s (×%d %s)", label, *src.PortionMultiplier, unit)
		}
		return label
	}
}

// ticketEntry is one named thing on the ticket after its rows are folded
// together: either a liter signature or a joined quantity label.
type ticketEntry struct {
	FoodItemID     int64
	Name           string
	LiterSignature string
	Labels         []string
	Notes          []string
}

func (e ticketEntry) labelText() string {
	if e.LiterSignature != "" {
		return e.LiterSignature
	}
	return strings.Join(e.Labels, ", ")
}

// literSignature folds an entry's liter rows into a deterministic
// "label × qty" list. Entries whose rows form the same (label, qty)
// multiset produce identical signatures.
func literSignature(pairs map[string]int64) string {
	labels := make([]string, 0, len(pairs))
	for label := range pairs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s × %d", label, pairs[label]))
	}
	return strings.Join(parts, ", ")
}

type ticketCategory struct {
	ID        int64
	Name      string
	SortOrder int32
	Entries   []ticketEntry
}

// foldTicketEntries groups the source rows per category, food item and
// resolved name, folding liter rows into signatures and other rows into
// quantity labels. Distinct items that happen to share a display name stay
// separate entries, so hide and reorder always target the right item.
// Hidden items are dropped; an explicit item order, when given, wins over
// the catalog order.
func foldTicketEntries(sources []ticketItemSource, opts ticketOptions) []ticketCategory {
	type entryKey struct {
		categoryID int64
		foodItemID int64
		name       string
	}

	categoryByID := make(map[int64]*ticketCategory)
	categorySeen := make([]int64, 0)
	entries := make(map[entryKey]*ticketEntry)
	entryOrder := make([]entryKey, 0)
	literPairs := make(map[entryKey]map[string]int64)

	for _, src := range sources {
		if src.Quantity <= 0 || opts.HiddenItemIDs[src.FoodItemID] {
			continue
		}
		if _, ok := categoryByID[src.CategoryID]; !ok {
			categoryByID[src.CategoryID] = &ticketCategory{ID: src.CategoryID, Name: src.CategoryName, SortOrder: src.CategorySortOrder}
			categorySeen = append(categorySeen, src.CategoryID)
		}

		key := entryKey{categoryID: src.CategoryID, foodItemID: src.FoodItemID, name: src.Name}
		entry, ok := entries[key]
		if !ok {
			entry = &ticketEntry{FoodItemID: src.FoodItemID, Name: src.Name}
			entries[key] = entry
			entryOrder = append(entryOrder, key)
		}
		if src.LiterLabel != nil {
			if literPairs[key] == nil {
				literPairs[key] = make(map[string]int64)
			}
			literPairs[key][*src.LiterLabel] += int64(src.Quantity)
		} else {
			entry.Labels = append(entry.Labels, quantityLabel(src))
		}
		if src.Note != nil && *src.Note != "" {
			entry.Notes = append(entry.Notes, *src.Note)
		}
	}

	for key, pairs := range literPairs {
		entries[key].LiterSignature = literSignature(pairs)
	}

	// Explicit order positions first, then capture order.
	position := make(map[int64]int, len(opts.ItemOrder))
	for i, id := range opts.ItemOrder {
		position[id] = i
	}
	rank := func(key entryKey, fallback int) int {
		if p, ok := position[entries[key].FoodItemID]; ok {
			return p
		}
		return len(opts.ItemOrder) + fallback
	}

	perCategory := make(map[int64][]entryKey)
	for _, key := range entryOrder {
		perCategory[key.categoryID] = append(perCategory[key.categoryID], key)
	}

	result := make([]ticketCategory, 0, len(categorySeen))
	sort.Slice(categorySeen, func(i, j int) bool {
		a, b := categoryByID[categorySeen[i]], categoryByID[categorySeen[j]]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
	for _, categoryID := range categorySeen {
		keys := perCategory[categoryID]
		fallback := make(map[entryKey]int, len(keys))
		for i, key := range keys {
			fallback[key] = i
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return rank(keys[i], fallback[keys[i]]) < rank(keys[j], fallback[keys[j]])
		})

		category := *categoryByID[categoryID]
		for _, key := range keys {
			category.Entries = append(category.Entries, *entries[key])
		}
		if len(category.Entries) > 0 {
			result = append(result, category)
		}
	}
	return result
}

// buildTicketLines flattens folded categories into print lines. Entries in a
// category that share one liter signature collapse under a single signature
// heading; everything else prints as "name: labels".
func buildTicketLines(categories []ticketCategory) []ticketLine {
	lines := make([]ticketLine, 0)
	for _, category := range categories {
		lines = append(lines, ticketLine{Kind: lineCategory, Text: category.Name})

		bySignature := make(map[string][]ticketEntry)
		signatureOrder := make([]string, 0)
		rest := make([]ticketEntry, 0)
		for _, entry := range category.Entries {
			if entry.LiterSignature == "" {
				rest = append(rest, entry)
				continue
			}
			if _, ok := bySignature[entry.LiterSignature]; !ok {
				signatureOrder = append(signatureOrder, entry.LiterSignature)
			}
			bySignature[entry.LiterSignature] = append(bySignature[entry.LiterSignature], entry)
		}

		for _, signature := range signatureOrder {
			group := bySignature[signature]
			if len(group) == 1 {
				lines = append(lines, entryLines(group[0])...)
				continue
			}
			lines = append(lines, ticketLine{Kind: lineSignature, Text: signature})
			for _, entry := range group {
				lines = append(lines, ticketLine{Kind: lineItem, Text: entry.Name})
				lines = append(lines, noteLines(entry)...)
			}
		}
		for _, entry := range rest {
			lines = append(lines, entryLines(entry)...)
		}
	}
	return lines
}

func entryLines(entry ticketEntry) []ticketLine {
	lines := []ticketLine{{Kind: lineItem, Text: fmt.Sprintf("%s: %s", entry.Name, entry.labelText())}}
	return append(lines, noteLines(entry)...)
}

func noteLines(entry ticketEntry) []ticketLine {
	lines := make([]ticketLine, 0, len(entry.Notes))
	for _, note := range entry.Notes {
		lines = append(lines, ticketLine{Kind: lineItem, Text: "* " + note})
	}
	return lines
}

// packColumns distributes lines into fixed-capacity columns. A category
// header never lands on a column's last line; it moves to the top of the
// next column instead.
func packColumns(lines []ticketLine, linesPerColumn int) []ticketColumn {
	if linesPerColumn < 2 {
		linesPerColumn = 2
	}
	columns := make([]ticketColumn, 0)
	current := ticketColumn{}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		remaining := linesPerColumn - len(current.Lines)
		if remaining == 0 || (line.Kind == lineCategory && remaining == 1 && i+1 < len(lines)) {
			columns = append(columns, current)
			current = ticketColumn{}
		}
		current.Lines = append(current.Lines, line)
	}
	if len(current.Lines) > 0 {
		columns = append(columns, current)
	}
	return columns
}

// composeTicket runs the full composition: fold, flatten, pack. When the
// packed layout needs more columns than fit on the page, the column
// capacity grows until it fits.
func composeTicket(sources []ticketItemSource, opts ticketOptions) ticketLayout {
	lines := buildTicketLines(foldTicketEntries(sources, opts))
	perColumn := opts.LinesPerColumn
	if perColumn < 2 {
		perColumn = 2
	}
	columns := packColumns(lines, perColumn)
	if opts.Columns > 0 {
		for len(columns) > opts.Columns && perColumn < len(lines)+1 {
			perColumn++
			columns = packColumns(lines, perColumn)
		}
	}
	return ticketLayout{Columns: columns, LinesPerColumn: perColumn}
}
