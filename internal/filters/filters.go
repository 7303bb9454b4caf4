// Package filters implements the stream decode helpers the PDF codec
// needs beyond plain zlib: predictor postprocessing for FlateDecode
// data and the ASCIIHexDecode filter.
package filters

import (
	"bytes"
	"fmt"
)

// Predict reverses the predictor applied before compression. Predictor
// 2 is TIFF horizontal differencing; 10-15 are the PNG filters, where
// each row carries its own filter type byte. Only 8 bits per component
// is supported.
func Predict(data []byte, predictor, columns, colors, bpc int) ([]byte, error) {
	if predictor <= 1 {
		return data, nil
	}
	if bpc != 8 {
		return nil, fmt.Errorf("predictor with %d bits per component not supported", bpc)
	}
	if columns < 1 {
		columns = 1
	}
	if colors < 1 {
		colors = 1
	}

	switch {
	case predictor == 2:
		return tiffPredict(data, columns, colors)
	case predictor >= 10 && predictor <= 15:
		return pngPredict(data, columns, colors)
	default:
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}
}

func tiffPredict(data []byte, columns, colors int) ([]byte, error) {
	rowSize := columns * colors
	if len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of row size %d", len(data), rowSize)
	}
	out := make([]byte, len(data))
	for start := 0; start < len(data); start += rowSize {
		for i := 0; i < rowSize; i++ {
			v := data[start+i]
			if i >= colors {
				v += out[start+i-colors]
			}
			out[start+i] = v
		}
	}
	return out, nil
}

func pngPredict(data []byte, columns, colors int) ([]byte, error) {
	rowSize := columns * colors
	if len(data)%(rowSize+1) != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of row size %d", len(data), rowSize+1)
	}
	rows := len(data) / (rowSize + 1)
	out := make([]byte, rows*rowSize)
	prev := make([]byte, rowSize)

	for row := 0; row < rows; row++ {
		in := data[row*(rowSize+1):]
		filter := in[0]
		cur := out[row*rowSize : (row+1)*rowSize]

		for i := 0; i < rowSize; i++ {
			var left, up, upLeft byte
			if i >= colors {
				left = cur[i-colors]
				upLeft = prev[i-colors]
			}
			up = prev[i]

			var predicted byte
			switch filter {
			case 0:
			case 1:
				predicted = left
			case 2:
				predicted = up
			case 3:
				predicted = byte((int(left) + int(up)) / 2)
			case 4:
				predicted = paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG filter %d in row %d", filter, row)
			}
			cur[i] = in[1+i] + predicted
		}
		prev = cur
	}
	return out, nil
}

// paeth picks the neighbor closest to the linear prediction left+up-upLeft.
func paeth(left, up, upLeft byte) byte {
	p := int(left) + int(up) - int(upLeft)
	pa, pb, pc := abs(p-int(left)), abs(p-int(up)), abs(p-int(upLeft))
	if pa <= pb && pa <= pc {
		return left
	}
	if pb <= pc {
		return up
	}
	return upLeft
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ASCIIHexDecode decodes hexadecimal stream data. Whitespace is
// skipped, '>' ends the data, and a trailing odd digit is padded with
// zero.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	var out bytes.Buffer
	var hi byte
	havePair := false
	for _, b := range data {
		switch {
		case b == '>':
			if havePair {
				out.WriteByte(hi << 4)
			}
			return out.Bytes(), nil
		case isSpace(b):
			continue
		}
		v, err := hexDigit(b)
		if err != nil {
			return nil, err
		}
		if havePair {
			out.WriteByte(hi<<4 | v)
			havePair = false
		} else {
			hi = v
			havePair = true
		}
	}
	if havePair {
		out.WriteByte(hi << 4)
	}
	return out.Bytes(), nil
}

func hexDigit(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q", b)
}

func isSpace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}
