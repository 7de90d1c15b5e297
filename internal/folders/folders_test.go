package folders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureName(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"trims_whitespace", "  Алиса  ", "Алиса"},
		{"strips_angle_brackets", "<b>Боб</b>", "bБоб/b"},
		{"empty", "   ", ""},
		{"keeps_cyrillic", "123456 Иван", "123456 Иван"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, DisplayName(tt.expected), CaptureName(tt.raw))
		})
	}
}

func TestCaptureName_CapsLength(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'ж'
	}
	got := CaptureName(string(long))
	assert.Len(t, []rune(string(got)), MaxChatNameRunes)
}

func TestTrimName_CapsLength(t *testing.T) {
	long := make([]rune, 40)
	for i := range long {
		long[i] = 'ф'
	}
	assert.Len(t, []rune(TrimName(string(long))), MaxNameRunes)
}

func TestDefaultList_SystemFoldersFirst(t *testing.T) {
	list := DefaultList()
	require.Len(t, list, 4)
	assert.Equal(t, FolderAll, list[0].ID)
	for _, id := range []string{FolderAll, FolderPrivate, FolderClients, FolderOthers} {
		assert.True(t, ContainsID(list, id))
	}
}

func TestNormalize_AppendsMissingSystemFolders(t *testing.T) {
	list, changed := Normalize([]Folder{{ID: "custom", Name: "Моя"}})
	assert.True(t, changed)
	for _, id := range []string{FolderAll, FolderPrivate, FolderClients, FolderOthers} {
		assert.True(t, ContainsID(list, id), "missing %s", id)
	}
	assert.True(t, ContainsID(list, "custom"))
}

func TestNormalize_ForcesAllFirst(t *testing.T) {
	list, changed := Normalize([]Folder{
		{ID: FolderPrivate, Name: "Личные"},
		{ID: FolderAll, Name: "Все"},
		{ID: FolderClients, Name: "Клиенты"},
		{ID: FolderOthers, Name: "Другое"},
	})
	assert.True(t, changed)
	assert.Equal(t, FolderAll, list[0].ID)
	assert.Len(t, list, 4)
}

func TestNormalize_ClearsAllMembership(t *testing.T) {
	list, changed := Normalize([]Folder{
		{ID: FolderAll, Name: "Все", Chats: []ChatRef{{Name: "Алиса"}}},
		{ID: FolderPrivate, Name: "Личные"},
		{ID: FolderClients, Name: "Клиенты"},
		{ID: FolderOthers, Name: "Другое"},
	})
	assert.True(t, changed)
	assert.Empty(t, list[0].Chats)
}

func TestNormalize_NoChangeWhenAlreadyNormalized(t *testing.T) {
	list, changed := Normalize(DefaultList())
	assert.False(t, changed)
	assert.Equal(t, FolderAll, list[0].ID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		list  []Folder
		valid bool
	}{
		{"nil_list", nil, false},
		{"empty_list", []Folder{}, true},
		{"default_list", DefaultList(), true},
		{"missing_id", []Folder{{Name: "x"}}, false},
		{"missing_name", []Folder{{ID: "x"}}, false},
		{"duplicate_ids", []Folder{{ID: "x", Name: "a"}, {ID: "x", Name: "b"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, Validate(tt.list))
		})
	}
}

func TestVisible_ExcludesHidden(t *testing.T) {
	list := []Folder{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B", Hidden: true},
		{ID: "c", Name: "C"},
	}
	visible := Visible(list)
	require.Len(t, visible, 2)
	assert.Equal(t, "a", visible[0].ID)
	assert.Equal(t, "c", visible[1].ID)
}

func TestClone_DoesNotAliasMembership(t *testing.T) {
	orig := []Folder{{ID: "a", Name: "A", Chats: []ChatRef{{Name: "Алиса", AddedAt: time.Now()}}}}
	cp := Clone(orig)
	cp[0].Chats[0].Name = "Боб"
	assert.Equal(t, DisplayName("Алиса"), orig[0].Chats[0].Name)
}

func TestNewUserFolder_GeneratesUniqueIDs(t *testing.T) {
	a := NewUserFolder("Работа")
	b := NewUserFolder("Работа")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Работа", a.Name)
}

func TestFolder_HasChatAndNameSet(t *testing.T) {
	f := Folder{ID: "x", Name: "X", Chats: []ChatRef{{Name: "Алиса"}, {Name: "Боб"}}}
	assert.True(t, f.HasChat("Алиса"))
	assert.False(t, f.HasChat("Вера"))
	set := f.NameSet()
	assert.Len(t, set, 2)
	_, ok := set["Боб"]
	assert.True(t, ok)
}
