package engine

import (
	appErr "boxrunner/pkg/errors"
)

// ImageResolver maps a job's isolation profile to a runtime image
// reference.
type ImageResolver interface {
	Resolve(profile string) (string, error)
}

// LocalResolver resolves profiles from a fixed config-backed map.
type LocalResolver struct {
	images map[string]string
}

// NewLocalResolver creates a resolver over the configured profile map.
func NewLocalResolver(images map[string]string) *LocalResolver {
	copied := make(map[string]string, len(images))
	for profile, image := range images {
		copied[profile] = image
	}
	return &LocalResolver{images: copied}
}

// Resolve returns the image for a profile. An unknown profile is an
// invocation-level failure: the job is dropped without a result.
func (r *LocalResolver) Resolve(profile string) (string, error) {
	if profile == "" {
		return "", appErr.ValidationError("profile", "required")
	}
	image, ok := r.images[profile]
	if !ok || image == "" {
		return "", appErr.Newf(appErr.ProfileUnknown, "no image configured for profile %q", profile)
	}
	return image, nil
}
