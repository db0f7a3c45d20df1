package manifest

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// gitSyncConstraint is the lowest git-sync release understanding the
// GITSYNC_* variables and GitHub App authentication. The -0 suffix lets
// v4 prereleases through.
const gitSyncConstraint = ">= 4.0.0-0"

// ImageTag returns the tag of an image reference, ignoring any digest.
// It returns an empty string when the reference has no tag.
func ImageTag(image string) string {
	ref, _, _ := strings.Cut(image, "@")

	lastSlash := strings.LastIndex(ref, "/")

	lastColon := strings.LastIndex(ref, ":")
	if lastColon <= lastSlash {
		return ""
	}

	return ref[lastColon+1:]
}

// ValidateGitSyncImage checks that image is tagged with a git-sync release
// compatible with the sidecar's environment. Images pinned only by digest
// carry no version and are accepted as given.
//
//nolint:wrapcheck // errors.Newf creates new errors
func ValidateGitSyncImage(image string) error {
	tag := ImageTag(image)
	if tag == "" {
		if strings.Contains(image, "@") {
			return nil
		}

		return errors.Newf("git-sync image %q has no version tag", image)
	}

	version, err := semver.NewVersion(tag)
	if err != nil {
		return errors.Wrapf(err, "git-sync image tag %q is not a semantic version", tag)
	}

	constraint, err := semver.NewConstraint(gitSyncConstraint)
	if err != nil {
		return errors.Wrap(err, "failed to parse git-sync version constraint")
	}

	if !constraint.Check(version) {
		return errors.Newf("git-sync image %q is too old: version %s does not satisfy %s",
			image, version.Original(), gitSyncConstraint)
	}

	return nil
}
