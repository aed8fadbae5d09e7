package security

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// Input length constraints
const (
	MaxRoomIDLength          = 64
	MaxParticipantNameLength = 50
	MinNameLength            = 1
	DefaultParticipantName   = "Anonymous"
)

var (
	// Room IDs appear in URLs and log lines
	roomIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// Name validation regex - Unicode letters, digits, spaces, apostrophes, hyphens, underscores, dots
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Dangerous characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
	// #RRGGBB only
	colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ValidateRoomID validates a room identifier taken from the connection URL.
func ValidateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("room ID cannot be empty")
	}
	if len(id) > MaxRoomIDLength {
		return fmt.Errorf("room ID too long (max %d characters)", MaxRoomIDLength)
	}
	if !roomIDRegex.MatchString(id) {
		return fmt.Errorf("invalid room ID format (allowed: letters, numbers, hyphens, underscores)")
	}
	return nil
}

// ValidateUserID validates the participant identifier carried by user_join.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if len(id) > config.MaxUserIDLength {
		return fmt.Errorf("user ID too long (max %d characters)", config.MaxUserIDLength)
	}
	for _, r := range id {
		if r < 32 || r == 127 {
			return fmt.Errorf("user ID contains control characters")
		}
	}
	return nil
}

// ValidateName validates a name string with length and character constraints
// Returns sanitized name and error if validation fails
func ValidateName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return "", fmt.Errorf("name too short (min %d characters)", MinNameLength)
	}
	if len(name) > maxLen {
		return "", fmt.Errorf("name too long (max %d characters)", maxLen)
	}
	if !nameRegex.MatchString(name) {
		return "", fmt.Errorf("name contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}
	if dangerousCharsRegex.MatchString(name) {
		return "", fmt.Errorf("name contains potentially dangerous characters")
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	return name, nil
}

// SanitizeParticipantName returns a displayable name, substituting the
// default when the supplied one does not validate.
func SanitizeParticipantName(name string) string {
	clean, err := ValidateName(name, MaxParticipantNameLength)
	if err != nil {
		return DefaultParticipantName
	}
	return clean
}

// IsValidColor reports whether s is a #RRGGBB colour.
func IsValidColor(s string) bool {
	return colorRegex.MatchString(s)
}

// SanitizeColor returns s lower-cased when valid, otherwise fallback.
func SanitizeColor(s, fallback string) string {
	s = strings.TrimSpace(s)
	if !IsValidColor(s) {
		return fallback
	}
	return strings.ToLower(s)
}

// Bounds is the drawable surface inbound coordinates are clipped to.
type Bounds struct {
	Width  float64
	Height float64
}

// Clip clamps a point into the surface. NaN coordinates collapse to 0.
func (b Bounds) Clip(x, y float64) (float64, float64) {
	return clamp(x, 0, b.Width), clamp(y, 0, b.Height)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OperationSanitizer repairs well-formed operations so they are safe to log
// and relay: coordinates are clipped, colours defaulted and widths clamped.
// Structural problems are rejected earlier, while decoding.
type OperationSanitizer struct {
	Bounds       Bounds
	DefaultColor string
}

func NewOperationSanitizer(width, height int, defaultColor string) *OperationSanitizer {
	if !IsValidColor(defaultColor) {
		defaultColor = config.DefaultColor
	}
	return &OperationSanitizer{
		Bounds:       Bounds{Width: float64(width), Height: float64(height)},
		DefaultColor: strings.ToLower(defaultColor),
	}
}

func (s *OperationSanitizer) Sanitize(op models.Operation) models.Operation {
	if op.HasPoint() {
		op.X, op.Y = s.Bounds.Clip(op.X, op.Y)
	} else {
		op.X, op.Y = 0, 0
	}
	if op.Tool == "" {
		op.Tool = models.ToolInk
	}
	op.Color = SanitizeColor(op.Color, s.DefaultColor)
	switch {
	case op.Width == 0:
		op.Width = config.DefaultWidth
	case op.Width < config.MinStrokeWidth:
		op.Width = config.MinStrokeWidth
	case op.Width > config.MaxStrokeWidth:
		op.Width = config.MaxStrokeWidth
	}
	return op
}

// SanitizeAll sanitizes ops into a new slice.
func (s *OperationSanitizer) SanitizeAll(ops []models.Operation) []models.Operation {
	out := make([]models.Operation, len(ops))
	for i, op := range ops {
		out[i] = s.Sanitize(op)
	}
	return out
}

// SanitizeErrorMessage strips internal detail from errors that are echoed
// back to a client.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
