package models

import "fmt"

// DynamicCategory is a key of the fixed superlative-role catalogue
type DynamicCategory string

const (
	CategoryTop1           DynamicCategory = "top_1"
	CategoryTop2           DynamicCategory = "top_2"
	CategoryTop3           DynamicCategory = "top_3"
	CategoryMostVoiceTime  DynamicCategory = "most_voice_time"
	CategoryMostStreaming  DynamicCategory = "most_streaming_time"
	CategoryMostMessages   DynamicCategory = "most_messages"
	CategoryMostModerated  DynamicCategory = "most_moderated"
	CategoryMostGameTime   DynamicCategory = "most_game_time"
	CategoryMostGames      DynamicCategory = "most_distinct_games"
	CategoryLongestSession DynamicCategory = "longest_session"
)

// Categories lists the catalogue in evaluation order
var Categories = []DynamicCategory{
	CategoryTop1,
	CategoryTop2,
	CategoryTop3,
	CategoryMostVoiceTime,
	CategoryMostStreaming,
	CategoryMostMessages,
	CategoryMostModerated,
	CategoryMostGameTime,
	CategoryMostGames,
	CategoryLongestSession,
}

// Metric names the aggregate a category ranks by
type Metric string

const (
	MetricPoints         Metric = "points"
	MetricVoiceSeconds   Metric = "voice_seconds"
	MetricStreamSeconds  Metric = "stream_seconds"
	MetricMessages       Metric = "messages"
	MetricModerated      Metric = "moderated_messages"
	MetricGameSeconds    Metric = "game_seconds"
	MetricDistinctGames  Metric = "distinct_games"
	MetricLongestSession Metric = "longest_session_seconds"
)

// ParseCategory validates a configured category key
func ParseCategory(key string) (DynamicCategory, error) {
	for _, c := range Categories {
		if string(c) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown dynamic role category %q", key)
}

// Metric returns the aggregate the category ranks by
func (c DynamicCategory) Metric() Metric {
	switch c {
	case CategoryTop1, CategoryTop2, CategoryTop3:
		return MetricPoints
	case CategoryMostVoiceTime:
		return MetricVoiceSeconds
	case CategoryMostStreaming:
		return MetricStreamSeconds
	case CategoryMostMessages:
		return MetricMessages
	case CategoryMostModerated:
		return MetricModerated
	case CategoryMostGameTime:
		return MetricGameSeconds
	case CategoryMostGames:
		return MetricDistinctGames
	case CategoryLongestSession:
		return MetricLongestSession
	default:
		return ""
	}
}

// Rank returns the dense rank the category targets, 1 for plain superlatives
func (c DynamicCategory) Rank() int {
	switch c {
	case CategoryTop2:
		return 2
	case CategoryTop3:
		return 3
	default:
		return 1
	}
}
