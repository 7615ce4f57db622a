package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/dotkom/vengeful/internal/logging"
	"github.com/dotkom/vengeful/internal/server/models"
	"github.com/dotkom/vengeful/internal/server/services"
)

// Handler exposes the ledger over HTTP. Routing is the only concern here:
// identity comes from the auth middleware, everything else is delegated to
// the services.
type Handler struct {
	groups    *services.GroupService
	ledger    *services.LedgerService
	sync      *services.SyncService
	logos     *services.LogoService
	logger    logging.Logger
	jwtSecret []byte
}

func NewHandler(groups *services.GroupService, ledger *services.LedgerService, sync *services.SyncService, logos *services.LogoService, logger logging.Logger, jwtSecret []byte) *Handler {
	return &Handler{
		groups:    groups,
		ledger:    ledger,
		sync:      sync,
		logos:     logos,
		logger:    logger.With("module", "httpapi"),
		jwtSecret: jwtSecret,
	}
}

// Routes assembles the router. Group reads are public; everything touching
// the caller's identity requires a bearer token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/group/{groupID}", h.getGroup)
	r.Get("/group/{groupID}/users", h.getGroupUsers)
	r.Get("/group/{groupID}/user/{userID}", h.getGroupUser)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/group/me", h.getMyGroups)

		r.Post("/group/{groupID}/punishmentType", h.createPunishmentType)
		r.Delete("/group/{groupID}/punishmentType/{punishmentTypeID}", h.deletePunishmentType)

		r.Post("/group/{groupID}/user/{userID}/punishment", h.createPunishments)
		r.Post("/punishment/{punishmentID}/verify", h.verifyPunishment)
		r.Delete("/punishment/{punishmentID}", h.deletePunishment)

		r.Post("/punishmentType/logo", h.presignLogoUpload)
		r.Get("/punishmentType/logo", h.presignLogoDownload)
	})

	return r
}

// actor resolves the authenticated caller to a local user. A caller the
// reconciler has never seen holds no memberships and so cannot act.
func (h *Handler) actor(r *http.Request) (*models.User, error) {
	owUserID, ok := owUserIDFromContext(r.Context())
	if !ok {
		return nil, common.ErrInvalidAccessToken
	}
	user, err := h.groups.UserByOWID(r.Context(), owUserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}
	return user, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", common.ErrValidation, name)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

// getMyGroups refreshes the caller's groups from the provider, then lists
// their active memberships. When the provider is unreachable the local state
// is served as-is; it converges on the next successful sync.
func (h *Handler) getMyGroups(w http.ResponseWriter, r *http.Request) {
	owUserID, ok := owUserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrInvalidAccessToken)
		return
	}

	if err := h.sync.SyncUserGroups(r.Context(), owUserID); err != nil {
		h.logger.Warn(r.Context(), "on-demand sync failed", "ow_user_id", owUserID, "error", err)
	}

	user, err := h.groups.UserByOWID(r.Context(), owUserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeJSON(w, http.StatusOK, []*models.Group{})
			return
		}
		writeError(w, err)
		return
	}

	groups, err := h.groups.MyGroups(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.groups.Group(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) getGroupUsers(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := h.groups.GroupUsers(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) getGroupUser(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	member, err := h.groups.GroupUser(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) createPunishmentType(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}

	var spec services.NewPunishmentType
	if err := decodeBody(r, &spec); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.ledger.CreatePunishmentType(r.Context(), actor.UserID, groupID, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": created.PunishmentTypeID})
}

func (h *Handler) deletePunishmentType(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	punishmentTypeID, err := pathID(r, "punishmentTypeID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ledger.DeletePunishmentType(r.Context(), actor.UserID, groupID, punishmentTypeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *Handler) createPunishments(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, err)
		return
	}
	targetUserID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	var items []services.NewPunishment
	if err := decodeBody(r, &items); err != nil {
		writeError(w, err)
		return
	}

	ids, err := h.ledger.CreatePunishments(r.Context(), actor.UserID, groupID, targetUserID, items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"ids": ids})
}

func (h *Handler) verifyPunishment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	punishmentID, err := pathID(r, "punishmentID")
	if err != nil {
		writeError(w, err)
		return
	}

	verified, err := h.ledger.VerifyPunishment(r.Context(), actor.UserID, punishmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verified)
}

func (h *Handler) deletePunishment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	punishmentID, err := pathID(r, "punishmentID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ledger.DeletePunishment(r.Context(), actor.UserID, punishmentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *Handler) presignLogoUpload(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.logos.PresignedPutURL(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "upload_url": url})
}

func (h *Handler) presignLogoDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, fmt.Errorf("%w: missing key", common.ErrValidation))
		return
	}

	url, err := h.logos.PresignedGetURL(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
