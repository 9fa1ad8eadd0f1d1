package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/liqa/internal/dom"
)

func TestProfileText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "no container",
			markup: `<html><body><div data-test-row-lockup-full-name>Jane</div></body></html>`,
			want:   "",
		},
		{
			name:   "empty container",
			markup: `<html><body><div data-live-test-profile-container><p>unrelated</p></div></body></html>`,
			want:   "",
		},
		{
			name: "fields in fixed order",
			markup: `<html><body><div data-live-test-profile-container>
<div data-test-education-item>MIT</div>
<div data-test-row-lockup-headline>  Staff   Engineer </div>
<div data-test-row-lockup-full-name>Jane Doe</div>
<div data-test-position-list-container><ul><li>Acme</li>
<li>Initech</li></ul></div>
<div data-test-education-item></div>
<div data-test-education-item>Stanford</div>
</div></body></html>`,
			want: "Jane Doe\n\nStaff Engineer\n\nAcme\nInitech\n\nMIT\n\nStanford",
		},
		{
			name:   "compatibility characters are normalized",
			markup: `<html><body><div data-live-test-profile-container><div data-test-summary-card-text>ﬁnance ２０ years</div></div></body></html>`,
			want:   "finance 20 years",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := dom.ParseString(tt.markup, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ProfileText(doc))
		})
	}

	assert.Empty(t, ProfileText(nil))
}
