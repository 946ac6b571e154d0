package competitors

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kirinyoku/amparena/internal/domain"
)

var (
	githubName  = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	twitterName = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
)

type ProfileInput struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	GithubUsername  string `json:"github_username"`
	TwitterUsername string `json:"twitter_username"`
	ProfilePhotoURL string `json:"profile_photo_url"`
	Bio             string `json:"bio"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.GithubUsername, validation.Match(githubName)),
		validation.Field(&in.TwitterUsername, validation.Match(twitterName)),
		validation.Field(&in.ProfilePhotoURL, validation.Length(0, 2048), is.URL),
		validation.Field(&in.Bio, validation.Length(0, 2000)),
	)
}

func (in ProfileInput) normalize() ProfileInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.GithubUsername = strings.TrimPrefix(strings.TrimSpace(in.GithubUsername), "@")
	in.TwitterUsername = strings.TrimPrefix(strings.TrimSpace(in.TwitterUsername), "@")
	in.ProfilePhotoURL = strings.TrimSpace(in.ProfilePhotoURL)
	in.Bio = strings.TrimSpace(in.Bio)
	return in
}

// UpdateInput replaces a profile. An empty Status keeps the current one.
type UpdateInput struct {
	ProfileInput
	Status domain.CompetitorStatus `json:"status"`
}

func (in UpdateInput) Validate() error {
	if err := in.ProfileInput.Validate(); err != nil {
		return err
	}

	return validation.ValidateStruct(&in,
		validation.Field(&in.Status, validation.By(func(v any) error {
			if s, _ := v.(domain.CompetitorStatus); s != "" && !s.Valid() {
				return validation.NewError("validation_invalid_status", "invalid status value")
			}
			return nil
		})),
	)
}

func (in UpdateInput) patch() domain.CompetitorPatch {
	p := domain.CompetitorPatch{
		Email:           &in.Email,
		FullName:        &in.FullName,
		GithubUsername:  &in.GithubUsername,
		TwitterUsername: &in.TwitterUsername,
		ProfilePhotoURL: &in.ProfilePhotoURL,
		Bio:             &in.Bio,
	}
	if in.Status != "" {
		p.Status = &in.Status
	}
	return p
}
