/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TIMESTAMPS:
  Always RFC 3339 with the offset of the user's prayer-day zone.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/types.go: Ledger model
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/prayer-ledger/content"
	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/streak"
)

// =============================================================================
// CHECK-INS
// =============================================================================

// SubmitCheckInRequest is the body of POST /api/checkins.
type SubmitCheckInRequest struct {
	Mystery    string   `json:"mystery"`
	Reflection string   `json:"reflection,omitempty"`
	Intentions []string `json:"intentions,omitempty"`
}

// CheckInDTO represents a check-in in API responses.
type CheckInDTO struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Mystery    string          `json:"mystery"`
	Reflection string          `json:"reflection,omitempty"`
	Intentions []string        `json:"intentions"`
	CreatedAt  time.Time       `json:"created_at"`
	Amens      int             `json:"amens"`
	HasAmened  bool            `json:"has_user_amened"`
	Comments   json.RawMessage `json:"comments,omitempty"`
}

// SubmitCheckInResponse is returned by POST /api/checkins. Warning is set
// when the check-in was recorded but could not be saved.
type SubmitCheckInResponse struct {
	CheckIn CheckInDTO `json:"check_in"`
	Stats   StatsDTO   `json:"stats"`
	Warning string     `json:"warning,omitempty"`
}

// TodayDTO answers "has the user prayed today".
type TodayDTO struct {
	Date      string `json:"date"`
	CheckedIn bool   `json:"checked_in"`
}

// CheckInListDTO wraps a newest-first list of check-ins.
type CheckInListDTO struct {
	CheckIns []CheckInDTO `json:"check_ins"`
}

// =============================================================================
// STATS
// =============================================================================

// StatsDTO is the full stats view.
type StatsDTO struct {
	CurrentStreak        int             `json:"current_streak"`
	LongestStreak        int             `json:"longest_streak"`
	TotalCheckIns        int             `json:"total_check_ins"`
	LastPrayedDate       *time.Time      `json:"last_prayed_date"`
	LastCheckIn          *CheckInDTO     `json:"last_check_in"`
	FavoriteMysteries    []string        `json:"favorite_mysteries"`
	WeeklyProgress       int             `json:"weekly_progress"`
	WeeklyCompletionRate decimal.Decimal `json:"weekly_completion_rate"`
}

// WeeklyDTO is the seven-day window ending today.
type WeeklyDTO struct {
	Progress       int             `json:"progress"`
	Target         int             `json:"target"`
	CompletionRate decimal.Decimal `json:"completion_rate"`
	CheckIns       []CheckInDTO    `json:"check_ins"`
}

// =============================================================================
// ENUMERATIONS & CONTENT
// =============================================================================

// OptionDTO is one selectable value for the presentation layer.
type OptionDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ArticleDTO is a rendered article.
type ArticleDTO struct {
	Category string `json:"category"`
	Slug     string `json:"slug"`
	Locale   string `json:"locale"`
	Title    string `json:"title"`
	Summary  string `json:"summary,omitempty"`
	Mystery  string `json:"mystery,omitempty"`
	HTML     string `json:"html"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCheckInDTO(c generic.CheckIn, loc *time.Location) CheckInDTO {
	intentions := make([]string, len(c.Intentions))
	for i, t := range c.Intentions {
		intentions[i] = string(t)
	}
	return CheckInDTO{
		ID:         string(c.ID),
		UserID:     string(c.UserID),
		Mystery:    string(c.Mystery),
		Reflection: c.Reflection,
		Intentions: intentions,
		CreatedAt:  c.CreatedAt.In(loc),
		Amens:      c.Social.Amens,
		HasAmened:  c.Social.HasUserAmened,
		Comments:   c.Social.Comments,
	}
}

func toCheckInDTOs(checkIns []generic.CheckIn, loc *time.Location) []CheckInDTO {
	out := make([]CheckInDTO, len(checkIns))
	for i, c := range checkIns {
		out[i] = toCheckInDTO(c, loc)
	}
	return out
}

func toStatsDTO(v streak.StatsView, loc *time.Location) StatsDTO {
	dto := StatsDTO{
		CurrentStreak:        v.CurrentStreak,
		LongestStreak:        v.LongestStreak,
		TotalCheckIns:        v.TotalCheckIns,
		FavoriteMysteries:    make([]string, len(v.FavoriteMysteries)),
		WeeklyProgress:       v.WeeklyProgress,
		WeeklyCompletionRate: v.WeeklyCompletionRate,
	}
	for i, m := range v.FavoriteMysteries {
		dto.FavoriteMysteries[i] = string(m)
	}
	if v.LastCheckIn != nil {
		last := toCheckInDTO(*v.LastCheckIn, loc)
		dto.LastCheckIn = &last
		t := last.CreatedAt
		dto.LastPrayedDate = &t
	}
	return dto
}

func toArticleDTO(a *content.Article) ArticleDTO {
	return ArticleDTO{
		Category: a.Category,
		Slug:     a.Slug,
		Locale:   a.Locale,
		Title:    a.Title,
		Summary:  a.Summary,
		Mystery:  string(a.Mystery),
		HTML:     a.HTML,
	}
}

// label turns an enum value into display text: "thanksgiving" -> "Thanksgiving".
func label(v string) string {
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}
