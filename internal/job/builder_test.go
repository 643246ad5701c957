package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"imaged/internal/conditioning"
	"imaged/internal/params"
	"imaged/pkg/types"
)

func mustSet(t *testing.T, imgs ...string) conditioning.Set {
	t.Helper()
	raw := make([]types.ControlInput, len(imgs))
	for i, img := range imgs {
		raw[i] = types.ControlInput{CnImg: img}
	}
	s, err := conditioning.Validate(raw)
	require.NoError(t, err)
	return s
}

func TestBuild_EmptyOverridesEqualsTemplate(t *testing.T) {
	tmpl := params.Default()
	j, err := Build(tmpl, nil)
	require.NoError(t, err)
	require.Equal(t, tmpl, j.Template)
	require.False(t, j.Conditioned())

	j, err = Build(tmpl, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, tmpl, j.Template)
}

func TestBuild_AttachesConditioningInOrder(t *testing.T) {
	set := mustSet(t, "A", "B", "C")
	j, err := Build(params.Default(), map[string]any{ConditioningField: set})
	require.NoError(t, err)
	require.True(t, j.Conditioned())
	items := j.ControlNetImage.Items()
	require.Len(t, items, 3)
	require.Equal(t, "A", items[0].Image)
	require.Equal(t, "B", items[1].Image)
	require.Equal(t, "C", items[2].Image)

	// order survives the wire encoding sent to the worker
	b, err := json.Marshal(j)
	require.NoError(t, err)
	var wire struct {
		ControlNetImage []struct {
			Img string `json:"cn_img"`
		} `json:"controlnet_image"`
		Prompt string `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal(b, &wire))
	require.Len(t, wire.ControlNetImage, 3)
	require.Equal(t, "A", wire.ControlNetImage[0].Img)
	require.Equal(t, "C", wire.ControlNetImage[2].Img)
}

func TestBuild_AcceptsInputSlice(t *testing.T) {
	j, err := Build(params.Default(), map[string]any{
		ConditioningField: []conditioning.Input{{Image: "x", Stop: 0.6, Weight: 0.5, Type: conditioning.TypeCPDS}},
	})
	require.NoError(t, err)
	require.Equal(t, conditioning.TypeCPDS, j.ControlNetImage.At(0).Type)

	_, err = Build(params.Default(), map[string]any{ConditioningField: []conditioning.Input{}})
	require.True(t, conditioning.IsInvalidCount(err))
}

func TestBuild_RejectsBadConditioningValue(t *testing.T) {
	_, err := Build(params.Default(), map[string]any{ConditioningField: "x.png"})
	require.True(t, params.IsFieldType(err))
}

func TestBuild_UnknownOverrideField(t *testing.T) {
	_, err := Build(params.Default(), map[string]any{"controlnet_images": mustSet(t, "a")})
	require.True(t, params.IsUnknownField(err))
}

func TestBuild_DoesNotShareStateWithTemplate(t *testing.T) {
	tmpl := params.Default()
	j, err := Build(tmpl, map[string]any{"prompt": "x"})
	require.NoError(t, err)
	j.StyleSelections[0] = "mutated"
	require.Equal(t, "Fooocus V2", tmpl.StyleSelections[0])

	c := j.Clone()
	c.StyleSelections[1] = "mutated"
	require.Equal(t, "Fooocus Sharp", j.StyleSelections[1])
}

func TestBuilder_LayersApplyInOrder(t *testing.T) {
	b := NewBuilder(params.Default()).
		Apply(map[string]any{"sharpness": 8.0, "prompt": "preset"}).
		Apply(map[string]any{"prompt": "request"}).
		Set("async_process", true).
		WithConditioning(mustSet(t, "a", "b"))
	j, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 8.0, j.Sharpness)
	require.Equal(t, "request", j.Prompt)
	require.True(t, j.AsyncProcess)
	require.Equal(t, 2, j.ControlNetImage.Len())

	j2, err := b.WithConditioning(conditioning.Set{}).Build()
	require.NoError(t, err)
	require.False(t, j2.Conditioned())
	require.True(t, j.Conditioned())
}
