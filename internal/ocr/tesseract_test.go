package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t600\t800\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t700\t300\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t700\t90\t18\t96.52\tSUBTOTAL\n" +
	"5\t1\t1\t1\t1\t2\t210\t701\t70\t17\t91.03\t$208.98\n" +
	"5\t1\t1\t1\t2\t1\t10\t730\t40\t18\t95.00\tTAX\n" +
	"5\t1\t1\t1\t2\t2\t210\t731\t60\t17\t88.40\t$13.37\n" +
	"5\t1\t1\t1\t3\t1\t10\t760\t55\t18\t-1\t \n" +
	"5\t1\t1\t1\t3\t2\tbad\t760\t55\t18\t90.00\tnoise\n"

func TestParseTSV(t *testing.T) {
	fragments := ParseTSV(sampleTSV)
	require.Len(t, fragments, 4)

	first := fragments[0]
	assert.Equal(t, "SUBTOTAL", first.Text)
	assert.InDelta(t, 10.0, first.Box.X, 0.001)
	assert.InDelta(t, 700.0, first.Box.Y, 0.001)
	assert.InDelta(t, 90.0, first.Box.Width, 0.001)
	assert.InDelta(t, 18.0, first.Box.Height, 0.001)
	assert.InDelta(t, 0.9652, first.Confidence, 0.0001)

	assert.Equal(t, "$13.37", fragments[3].Text)
}

func TestParseTSVEmptyOutput(t *testing.T) {
	assert.Empty(t, ParseTSV(""))
	assert.Empty(t, ParseTSV("level\tpage_num\n"))
}
