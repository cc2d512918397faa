package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeYAML(t *testing.T) {
	doc := []byte(`
rules:
  - category: location
    action: delete
  - name: Model
    action: replace
    value:
      ascii: anonymous
  - tag: 0x9003
    ifd: exif
    action: delete
  - name: ExposureTime
    action: replace
    value:
      rationals: [[1, 60]]
`)
	p, err := Decode(doc)
	require.NoError(t, err)
	require.False(t, p.StripAll)
	require.Len(t, p.Rules, 4)

	require.Equal(t, "location", p.Rules[0].Category)
	require.Equal(t, Delete, p.Rules[0].Action)

	require.Equal(t, "Model", p.Rules[1].Name)
	require.Equal(t, Replace, p.Rules[1].Action)
	require.Equal(t, "anonymous", *p.Rules[1].Value.ASCII)

	require.NotNil(t, p.Rules[2].Tag)
	require.Equal(t, uint16(0x9003), *p.Rules[2].Tag)
	require.Equal(t, "exif", p.Rules[2].IFD)

	require.Equal(t, [][2]int64{{1, 60}}, p.Rules[3].Value.Rationals)
}

func TestDecodeStripAll(t *testing.T) {
	p, err := Decode([]byte("strip_all: true\n"))
	require.NoError(t, err)
	require.True(t, p.StripAll)
	require.Empty(t, p.Rules)
}

func TestValidateRejectsAmbiguousMatcher(t *testing.T) {
	p := &Plan{Rules: []Rule{{Name: "Model", Category: "device", Action: Delete}}}
	require.Error(t, p.Validate())
}

func TestValidateRejectsEmptyMatcher(t *testing.T) {
	p := &Plan{Rules: []Rule{{Action: Delete}}}
	require.Error(t, p.Validate())
}

func TestValidateRejectsReplaceWithoutValue(t *testing.T) {
	p := &Plan{Rules: []Rule{{Name: "Model", Action: Replace}}}
	require.Error(t, p.Validate())
}

func TestValidateRejectsUnknownAction(t *testing.T) {
	p := &Plan{Rules: []Rule{{Name: "Model", Action: "obliterate"}}}
	require.Error(t, p.Validate())
}

func TestStripAllPlan(t *testing.T) {
	p := StripAllPlan()
	require.True(t, p.StripAll)
	require.NoError(t, p.Validate())
}

func TestDecodeBadYAML(t *testing.T) {
	_, err := Decode([]byte("rules: [not a rule"))
	require.Error(t, err)
}
