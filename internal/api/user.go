package api

import (
	"net/http"

	"docmanager/internal/models"
	"docmanager/internal/service"
	"docmanager/internal/util"
)

type UserAction string

const (
	UserProfile       UserAction = "profile"
	UserUpdateProfile UserAction = "update-profile"
	UserUploadAvatar  UserAction = "upload-avatar"
)

func (h *Handlers) userRoutes() routeTable[UserAction] {
	return routeTable[UserAction]{
		UserProfile:       {Authenticated, get, h.Profile},
		UserUpdateProfile: {Authenticated, post, h.UpdateProfile},
		UserUploadAvatar:  {Authenticated, post, h.UploadAvatar},
	}
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request, caller models.User) error {
	u, err := h.svc.Profile(r.Context(), caller.ID)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "", u)
	return nil
}

// UpdateProfile accepts either form fields or a JSON body.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request, caller models.User) error {
	var in service.ProfileInput
	if isFormRequest(r) {
		in = service.ProfileInput{
			FullName:    r.FormValue("full_name"),
			StudentCode: r.FormValue("student_code"),
			Department:  r.FormValue("department"),
		}
	} else if err := decodeJSON(r, &in); err != nil {
		return err
	}
	u, err := h.svc.UpdateProfile(r.Context(), caller.ID, in)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "profile updated", u)
	return nil
}

func (h *Handlers) UploadAvatar(w http.ResponseWriter, r *http.Request, caller models.User) error {
	if err := parseMultipart(w, r, h.cfg.MaxAvatarSize); err != nil {
		return err
	}
	up, closer, err := formUpload(r, "avatar")
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	url, err := h.svc.UploadAvatar(r.Context(), caller.ID, up)
	if err != nil {
		return err
	}
	util.WriteData(w, http.StatusOK, "avatar updated", map[string]string{"avatar_url": url})
	return nil
}
