package notification

import (
	"path"
	"strings"
)

// SoundResolver maps a caller-supplied sound reference to a platform sound.
// ok is false when the reference cannot be resolved.
type SoundResolver interface {
	Resolve(ref string) (sound Sound, ok bool)
}

// SoundResolverFunc adapts a function to SoundResolver.
type SoundResolverFunc func(ref string) (Sound, bool)

func (f SoundResolverFunc) Resolve(ref string) (Sound, bool) { return f(ref) }

var audioExtensions = map[string]bool{
	".aac": true, ".aiff": true, ".caf": true, ".m4a": true,
	".mp3": true, ".ogg": true, ".wav": true,
}

// AssetSoundResolver accepts the asset schemes an application bundle can
// carry (res://, file://, www/) and bare audio file names.
type AssetSoundResolver struct{}

func (AssetSoundResolver) Resolve(ref string) (Sound, bool) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return SoundNone, false
	case strings.EqualFold(ref, "default"):
		return SoundDefault, true
	case strings.HasPrefix(ref, "res://"):
		return Sound(ref), len(ref) > len("res://")
	case strings.HasPrefix(ref, "file://"), strings.HasPrefix(ref, "www/"):
		return Sound(ref), audioExtensions[strings.ToLower(path.Ext(ref))]
	case !strings.Contains(ref, "/") && audioExtensions[strings.ToLower(path.Ext(ref))]:
		return Sound(ref), true
	}
	return SoundNone, false
}
