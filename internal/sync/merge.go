// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
merge.go - Cross-Server Media Catalog Merge

Collapses per-server library items into one merged catalog row per
logical item. Identity is the typed mediaKey (media type, normalized
title, year), never a delimited string: remote rating keys differ per
server and cannot identify an item across servers.

Merge rules per key:
  - file sizes sum; the distinct sizes also render as a set
  - added_at takes the earliest, last_played the latest
  - codec and resolution variants accumulate as sets
  - each rating field fills independently, primary first: a secondary
    supplies only the rating fields the primary left empty
  - rating keys are retained per server side (a/b) for later per-item
    statistics lookups
  - play counts sum
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"sort"
	"strings"
	"time"

	"github.com/multiplexstats/multiplex/internal/models"
)

// mediaKey is the cross-server identity of one logical media item.
// Year participates only for movies; shows merge across years.
type mediaKey struct {
	MediaType       string
	NormalizedTitle string
	Year            int
}

// serverMediaItem is one library item as seen by one server, already
// enriched with export metadata and a play count.
type serverMediaItem struct {
	ServerName  string
	ServerOrder int

	MediaType string // movie or show
	Title     string
	SortTitle string
	Year      int

	RatingKey  string
	FileSize   int64
	VideoCodec string
	Resolution string
	AddedAt    int64
	LastPlayed int64
	PlayCount  int

	ContentRating  string
	AudienceRating string
}

func (it *serverMediaItem) key() mediaKey {
	k := mediaKey{
		MediaType:       it.MediaType,
		NormalizedTitle: normalizeTitle(it.Title),
	}
	if it.MediaType == "movie" {
		k.Year = it.Year
	}
	return k
}

// mediaAggregate accumulates everything known about one logical item.
type mediaAggregate struct {
	title     string
	sortTitle string
	mediaType string
	year      int

	totalFileSize int64
	addedAt       int64
	lastPlayed    int64
	playCount     int

	codecs      []string
	resolutions []string
	fileSizes   []int64

	contentRating   string
	audienceRating  string
	ratingKeysA     []string
	ratingKeysB     []string
	serverNames     []string
	seenServers     map[string]bool
	seenCodecs      map[string]bool
	seenResolutions map[string]bool
	seenFileSizes   map[int64]bool
}

func newMediaAggregate(it *serverMediaItem) *mediaAggregate {
	return &mediaAggregate{
		title:           it.Title,
		sortTitle:       it.SortTitle,
		mediaType:       it.MediaType,
		year:            it.Year,
		seenServers:     make(map[string]bool),
		seenCodecs:      make(map[string]bool),
		seenResolutions: make(map[string]bool),
		seenFileSizes:   make(map[int64]bool),
	}
}

func (agg *mediaAggregate) absorb(it *serverMediaItem) {
	agg.totalFileSize += it.FileSize
	agg.playCount += it.PlayCount

	if it.AddedAt > 0 && (agg.addedAt == 0 || it.AddedAt < agg.addedAt) {
		agg.addedAt = it.AddedAt
	}
	if it.LastPlayed > agg.lastPlayed {
		agg.lastPlayed = it.LastPlayed
	}

	if it.VideoCodec != "" && !agg.seenCodecs[it.VideoCodec] {
		agg.seenCodecs[it.VideoCodec] = true
		agg.codecs = append(agg.codecs, it.VideoCodec)
	}
	if it.Resolution != "" && !agg.seenResolutions[it.Resolution] {
		agg.seenResolutions[it.Resolution] = true
		agg.resolutions = append(agg.resolutions, it.Resolution)
	}
	if it.FileSize > 0 && !agg.seenFileSizes[it.FileSize] {
		agg.seenFileSizes[it.FileSize] = true
		agg.fileSizes = append(agg.fileSizes, it.FileSize)
	}

	// Primary-server-wins per field: items arrive in ascending server
	// order, so each rating field keeps the first non-empty value and a
	// secondary fills only the fields the primary left empty.
	if agg.contentRating == "" {
		agg.contentRating = it.ContentRating
	}
	if agg.audienceRating == "" {
		agg.audienceRating = it.AudienceRating
	}

	if it.RatingKey != "" {
		if it.ServerOrder == 1 {
			agg.ratingKeysA = append(agg.ratingKeysA, it.RatingKey)
		} else {
			agg.ratingKeysB = append(agg.ratingKeysB, it.RatingKey)
		}
	}

	if !agg.seenServers[it.ServerName] {
		agg.seenServers[it.ServerName] = true
		agg.serverNames = append(agg.serverNames, it.ServerName)
	}
}

func (agg *mediaAggregate) render(syncedAt time.Time) *models.CachedMediaItem {
	resolutions := make([]string, len(agg.resolutions))
	copy(resolutions, agg.resolutions)
	sortResolutions(resolutions)

	return &models.CachedMediaItem{
		MediaType: agg.mediaType,
		Title:     agg.title,
		SortTitle: agg.sortTitle,
		Year:      agg.year,

		TotalFileSize: agg.totalFileSize,
		AddedAt:       agg.addedAt,
		LastPlayed:    agg.lastPlayed,
		PlayCount:     agg.playCount,

		VideoCodecs: strings.Join(agg.codecs, variantSeparator),
		Resolutions: strings.Join(resolutions, variantSeparator),
		FileSizes:   strings.Join(formatFileSizes(agg.fileSizes), variantSeparator),

		ContentRating:  agg.contentRating,
		AudienceRating: agg.audienceRating,

		RatingKeysA: agg.ratingKeysA,
		RatingKeysB: agg.ratingKeysB,
		ServerNames: strings.Join(agg.serverNames, variantSeparator),
		SyncedAt:    syncedAt,
	}
}

// mergeMediaItems collapses per-server items into the merged catalog,
// sorted for deterministic storage.
func mergeMediaItems(items []serverMediaItem, syncedAt time.Time) []*models.CachedMediaItem {
	// Primary first so first-seen fields (display title, sort title)
	// come from server A when both carry the item.
	sorted := make([]serverMediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ServerOrder < sorted[j].ServerOrder
	})

	byKey := make(map[mediaKey]*mediaAggregate)
	order := make([]mediaKey, 0, len(sorted))
	for i := range sorted {
		it := &sorted[i]
		k := it.key()
		agg, ok := byKey[k]
		if !ok {
			agg = newMediaAggregate(it)
			byKey[k] = agg
			order = append(order, k)
		}
		agg.absorb(it)
	}

	out := make([]*models.CachedMediaItem, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k].render(syncedAt))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MediaType != out[j].MediaType {
			return out[i].MediaType < out[j].MediaType
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Year < out[j].Year
	})
	return out
}
