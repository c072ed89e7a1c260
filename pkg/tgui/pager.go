package tgui

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// PageLabel renders a 1-based "Page p/n" label.
func PageLabel(page, totalPages, total int) string {
	totalPages = max(totalPages, 1)
	return fmt.Sprintf("Page %d/%d (total: %d)", page, totalPages, total)
}

// PagerRow returns prev/next buttons around page, with payload set to the
// target page number. Missing neighbours are left out.
func PagerRow(ns, action string, page, totalPages int) []tele.Btn {
	var row []tele.Btn
	if page > 1 {
		row = append(row, Btn("◀️", Data(ns, action, strconv.Itoa(page-1))))
	}
	if page < totalPages {
		row = append(row, Btn("▶️", Data(ns, action, strconv.Itoa(page+1))))
	}
	return row
}
