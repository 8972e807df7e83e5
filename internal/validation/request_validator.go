package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/groupxyz/media-relay/internal/domain"
)

// Messages returned to clients for rejected requests
const (
	MsgInvalidURL     = "Invalid URL."
	MsgNoFormat       = "No format specified."
	MsgInvalidPayload = "Invalid request body."
)

var (
	validate      *validator.Validate
	mediaURLRegex = regexp.MustCompile(`^https?://`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("media_url", validateMediaURL)
	_ = validate.RegisterValidation("not_blank", validateNotBlank)
}

func validateMediaURL(fl validator.FieldLevel) bool {
	return mediaURLRegex.MatchString(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateURL checks that url is an absolute http(s) URL
func ValidateURL(url string) error {
	if err := validate.Var(url, "required,media_url"); err != nil {
		return domain.WrapError(domain.KindInvalidInput, MsgInvalidURL, err)
	}
	return nil
}

// ValidateInfoRequest validates the body of POST /api/info
func ValidateInfoRequest(req *domain.InfoRequest) error {
	if req == nil {
		return domain.NewError(domain.KindInvalidInput, MsgInvalidPayload)
	}
	return ValidateURL(req.URL)
}

// ValidateDownloadRequest validates the body of POST /api/download.
// The URL is checked first so a bad URL is reported even when the quality is missing too.
func ValidateDownloadRequest(req *domain.DownloadRequest) error {
	if req == nil {
		return domain.NewError(domain.KindInvalidInput, MsgInvalidPayload)
	}
	if err := ValidateURL(req.URL); err != nil {
		return err
	}
	if err := validate.Var(req.Quality, "not_blank"); err != nil {
		return domain.WrapError(domain.KindInvalidInput, MsgNoFormat, err)
	}
	req.Quality = strings.TrimSpace(req.Quality)
	return nil
}
