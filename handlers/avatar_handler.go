package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/services"
)

type AvatarHandler struct {
	avatarService *services.AvatarService
}

func NewAvatarHandler(avatarService *services.AvatarService) *AvatarHandler {
	return &AvatarHandler{
		avatarService: avatarService,
	}
}

func (h *AvatarHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.avatarService.Get(ctx)
	if err != nil {
		log.Printf("GetAvatar: %v", err)
		respondWithStoreError(w, err, "Failed to load avatar")
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

func (h *AvatarHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	progress, err := h.avatarService.Achievements(ctx)
	if err != nil {
		log.Printf("GetAchievements: %v", err)
		respondWithStoreError(w, err, "Failed to load achievements")
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

func (h *AvatarHandler) GetOutfits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.avatarService.Get(ctx)
	if err != nil {
		log.Printf("GetOutfits: %v", err)
		respondWithStoreError(w, err, "Failed to load avatar")
		return
	}

	respondWithJSON(w, http.StatusOK, a.Wardrobe())
}

func (h *AvatarHandler) UnlockOutfit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	req, ok := outfitRequest(w, r)
	if !ok {
		return
	}

	unlocked := h.avatarService.UnlockOutfit(ctx, req.Outfit)
	h.respondWithAvatar(ctx, w, unlocked)
}

// SelectOutfit answers success:false for a locked outfit rather than an error.
func (h *AvatarHandler) SelectOutfit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	req, ok := outfitRequest(w, r)
	if !ok {
		return
	}

	selected, err := h.avatarService.SelectOutfit(ctx, req.Outfit)
	if err != nil {
		log.Printf("SelectOutfit: %v", err)
		respondWithStoreError(w, err, "Failed to select outfit")
		return
	}
	h.respondWithAvatar(ctx, w, selected)
}

func (h *AvatarHandler) Interact(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.avatarService.Interact(ctx)
	if err != nil {
		log.Printf("Interact: %v", err)
		respondWithStoreError(w, err, "Failed to interact with avatar")
		return
	}

	respondWithJSON(w, http.StatusOK, operationResponse{Success: a != nil, Avatar: a})
}

func (h *AvatarHandler) respondWithAvatar(ctx context.Context, w http.ResponseWriter, success bool) {
	a, err := h.avatarService.Get(ctx)
	if err != nil {
		log.Printf("respondWithAvatar: %v", err)
		respondWithStoreError(w, err, "Failed to load avatar")
		return
	}
	respondWithJSON(w, http.StatusOK, operationResponse{Success: success, Avatar: a})
}

func outfitRequest(w http.ResponseWriter, r *http.Request) (*avatar.OutfitRequest, bool) {
	var req avatar.OutfitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}
