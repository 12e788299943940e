package avatar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidRequest = errors.New("invalid avatar request")

var validate = validator.New()

type OutfitRequest struct {
	Outfit string `json:"outfit" validate:"required,max=50"`
}

func (r *OutfitRequest) Validate() error {
	r.Outfit = strings.TrimSpace(r.Outfit)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// OutfitView is one wardrobe entry as the client shows it.
type OutfitView struct {
	Name     string `json:"name"`
	Unlocked bool   `json:"unlocked"`
	Selected bool   `json:"selected"`
}

// Wardrobe lists the built-in outfits followed by any other unlocked ones.
func (a *Avatar) Wardrobe() []OutfitView {
	views := make([]OutfitView, 0, len(Outfits))
	seen := make(map[string]bool, len(Outfits))
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		views = append(views, OutfitView{
			Name:     name,
			Unlocked: a.HasOutfit(name),
			Selected: a.SelectedOutfit == name,
		})
	}
	for _, name := range Outfits {
		add(name)
	}
	for _, name := range a.UnlockedOutfits {
		add(name)
	}
	return views
}
