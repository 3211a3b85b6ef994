// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package sync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// normalizeTitle lower-cases a title, trims it, and collapses internal
// whitespace runs to single spaces. It is the title half of every
// cross-server identity key.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// variantSeparator joins rendered set variants (codecs, resolutions,
// file sizes, server names) in cached media rows.
const variantSeparator = " | "

// resolutionRank orders display resolutions best-first. Unknown labels
// sort after every known one.
var resolutionRank = map[string]int{
	"4k":    0,
	"2160p": 0,
	"1080p": 1,
	"720p":  2,
	"480p":  3,
	"sd":    4,
}

func sortResolutions(resolutions []string) {
	sort.SliceStable(resolutions, func(i, j int) bool {
		ri, iok := resolutionRank[strings.ToLower(resolutions[i])]
		rj, jok := resolutionRank[strings.ToLower(resolutions[j])]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return resolutions[i] < resolutions[j]
		}
	})
}

const bytesPerGB = 1024 * 1024 * 1024

// formatFileSizes renders distinct file sizes as "%.2f GB" strings,
// largest first.
func formatFileSizes(sizes []int64) []string {
	sorted := make([]int64, len(sizes))
	copy(sorted, sizes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	out := make([]string, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, fmt.Sprintf("%.2f GB", float64(s)/float64(bytesPerGB)))
	}
	return out
}

// parseIntString tolerantly parses the numeric-as-string fields Tautulli
// returns in library rows. Empty and malformed values become zero.
func parseIntString(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// slotForOrder maps the fixed server order to the ledger slot label.
func slotForOrder(order int) string {
	if order == 1 {
		return "a"
	}
	return "b"
}
