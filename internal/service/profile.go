package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docmanager/internal/files"
	"docmanager/internal/models"
)

const avatarDir = "avatars"

type ProfileInput struct {
	FullName    string `json:"full_name" validate:"required,max=255"`
	StudentCode string `json:"student_code" validate:"max=50"`
	Department  string `json:"department" validate:"max=255"`
}

func (s *Service) Profile(ctx context.Context, userID int64) (models.User, error) {
	u, err := s.st.GetUserByID(ctx, userID)
	return u, mapStoreErr(err)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateStruct(in); err != nil {
		return models.User{}, err
	}
	if err := s.st.UpdateProfile(ctx, userID, in.FullName, optional(in.StudentCode), optional(in.Department)); err != nil {
		return models.User{}, mapStoreErr(err)
	}
	return s.Profile(ctx, userID)
}

var avatarExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true}

// UploadAvatar stores a new avatar image and returns its public URL. The
// previous avatar file is removed once the user row points at the new one.
func (s *Service) UploadAvatar(ctx context.Context, userID int64, up *Upload) (string, error) {
	if up == nil || up.Body == nil {
		return "", invalid("avatar", "avatar is required")
	}
	if up.Size > s.cfg.MaxAvatarSize {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	if !avatarExtensions[ext] {
		return "", invalid("avatar", "only JPG and PNG images are accepted")
	}
	u, err := s.st.GetUserByID(ctx, userID)
	if err != nil {
		return "", mapStoreErr(err)
	}
	name := fmt.Sprintf("%s/avatar_%d_%d.%s", avatarDir, userID, s.now().Unix(), ext)
	if _, err := s.files.Put(name, up.Body, s.cfg.MaxAvatarSize); err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return "", ErrFileTooLarge
		}
		return "", err
	}
	url := fileURL(name)
	if err := s.st.UpdateAvatar(ctx, userID, url); err != nil {
		if rmErr := s.files.Remove(name); rmErr != nil {
			s.log.WithError(rmErr).WithField("file", name).Warn("remove orphaned avatar")
		}
		return "", mapStoreErr(err)
	}
	if u.AvatarURL != nil {
		if old := strings.TrimPrefix(*u.AvatarURL, "/uploads/"); old != name && strings.HasPrefix(old, avatarDir+"/") {
			if err := s.files.Remove(old); err != nil {
				s.log.WithError(err).WithField("file", old).Warn("remove previous avatar")
			}
		}
	}
	return url, nil
}
