package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Report
		wantErr bool
	}{
		{
			name: "press button 0",
			data: []byte{0x01, 0x01, 0x01, 0x00, 0x10, 0x00, 0x00, 0x00},
			want: Report{Kind: KindPress, Mask: 0x0001, DeviceTime: 16},
		},
		{
			name: "release buttons 1 and 9",
			data: []byte{0x01, 0x02, 0x02, 0x02, 0xE8, 0x03, 0x00, 0x00},
			want: Report{Kind: KindRelease, Mask: 0x0202, DeviceTime: 1000},
		},
		{
			name: "trailing padding ignored",
			data: []byte{0x01, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF},
			want: Report{Kind: KindPress, Mask: 0x8000},
		},
		{
			name:    "too short",
			data:    []byte{0x01, 0x01, 0x01},
			wantErr: true,
		},
		{
			name:    "wrong report id",
			data:    []byte{0x02, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			data:    []byte{0x01, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReport(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportEncodeParses(t *testing.T) {
	rep := Report{Kind: KindRelease, Mask: 0x00F0, DeviceTime: 123456}
	got, err := ParseReport(rep.Encode())
	require.NoError(t, err)
	assert.Equal(t, rep, got)
}

func TestReportButtons(t *testing.T) {
	assert.Equal(t, []int{0, 3, 15}, Report{Mask: 0x8009}.Buttons())
	assert.Empty(t, Report{}.Buttons())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "press", KindPress.String())
	assert.Equal(t, "release", KindRelease.String())
	assert.Equal(t, "unknown(7)", Kind(7).String())
}
