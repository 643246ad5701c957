package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"imaged/internal/params"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir_AllFormats(t *testing.T) {
	d := t.TempDir()
	writeFile(t, d, "anime.yaml", "base_model_name: animaPencilXL_v100.safetensors\nstyle_selections:\n  - Fooocus V2\n  - SAI Anime\nguidance_scale: 7\n")
	writeFile(t, d, "lightning.json", `{"performance_selection":"Lightning","sharpness":0.0}`)
	writeFile(t, d, "realistic.toml", "base_model_name = \"realisticStockPhoto_v20.safetensors\"\nimage_number = 2\n")
	writeFile(t, d, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(d, "sub.yaml"), 0o755))

	set, err := LoadDir(d)
	require.NoError(t, err)
	require.Equal(t, []string{"anime", "lightning", "realistic"}, set.Names())

	anime, ok := set.Lookup("anime")
	require.True(t, ok)
	require.Equal(t, filepath.Join(d, "anime.yaml"), anime.Path)

	// decoded overrides apply cleanly to the template
	tmpl, err := params.Default().Overlay(anime.Overrides)
	require.NoError(t, err)
	require.Equal(t, []string{"Fooocus V2", "SAI Anime"}, tmpl.StyleSelections)
	require.Equal(t, 7.0, tmpl.GuidanceScale)

	rs, _ := set.Lookup("realistic")
	tmpl, err = params.Default().Overlay(rs.Overrides)
	require.NoError(t, err)
	require.Equal(t, 2, tmpl.ImageNumber)
}

func TestLoadDir_DuplicateStem(t *testing.T) {
	d := t.TempDir()
	writeFile(t, d, "x.json", `{}`)
	writeFile(t, d, "x.yml", "prompt: hi\n")
	_, err := LoadDir(d)
	require.ErrorContains(t, err, `preset "x"`)
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	d := t.TempDir()
	writeFile(t, d, "broken.json", `{"prompt":`)
	_, err = LoadDir(d)
	require.ErrorContains(t, err, "broken.json")
}

func TestLoadFile_DropsNestedPreset(t *testing.T) {
	d := t.TempDir()
	writeFile(t, d, "p.json", `{"preset":"other","prompt":"x"}`)
	p, err := LoadFile(filepath.Join(d, "p.json"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"prompt": "x"}, p.Overrides)
	_, err = LoadFile(filepath.Join(d, "p.ini"))
	require.Error(t, err)
}

func TestLoadDir_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	require.NoError(t, os.Mkdir(filepath.Join(home, "presets"), 0o755))
	writeFile(t, filepath.Join(home, "presets"), "initial.json", `{}`)
	set, err := LoadDir("~/presets")
	require.NoError(t, err)
	require.Equal(t, []string{"initial"}, set.Names())
}
