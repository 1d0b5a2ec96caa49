package netstate

// FavoriteState is a configured connection profile, visible or not.
type FavoriteState struct {
	managedState

	profilePath string
}

// PropertyChanged implements Managed.
func (f *FavoriteState) PropertyChanged(key string, value any) bool {
	if handled, changed := f.managedPropertyChanged(key, value); handled {
		return changed
	}
	if key == PropertyProfile {
		return f.setString(&f.profilePath, key, value)
	}
	return f.setRaw(key, value)
}

func (f *FavoriteState) ProfilePath() string { return f.profilePath }

// IsFavorite reports whether the entry belongs to a profile. Entries without
// one are not exposed by GetFavoriteList.
func (f *FavoriteState) IsFavorite() bool { return f.profilePath != "" }
