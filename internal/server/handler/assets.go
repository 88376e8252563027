package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	assetdomain "github.com/kennarddh/asset-management-sub000/internal/asset/domain"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/server/respond"
)

// AssetLister reads the loanable assets.
type AssetLister interface {
	List(ctx context.Context) ([]*assetdomain.Asset, error)
}

// AssetHandler serves /api/v1/assets so clients can pick what to borrow.
type AssetHandler struct {
	assets AssetLister
	logger *zap.Logger
}

// NewAssetHandler returns an AssetHandler.
func NewAssetHandler(assets AssetLister, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: logging.OrNop(logger)}
}

type assetResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	CategoryID       *string `json:"categoryId,omitempty"`
	Quantity         int     `json:"quantity"`
	RequiresApproval bool    `json:"requiresApproval"`
}

// List handles GET /assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.assets.List(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	out := make([]assetResponse, 0, len(list))
	for _, a := range list {
		out = append(out, assetResponse{
			ID:               a.ID,
			Name:             a.Name,
			Description:      a.Description,
			CategoryID:       a.CategoryID,
			Quantity:         a.Quantity,
			RequiresApproval: a.RequiresApproval,
		})
	}
	respond.JSON(w, http.StatusOK, out)
}
