package mdlatex

import (
	"encoding/json"
	"fmt"
	"strings"
)

// payloadEscaper escapes characters that would terminate a single-quoted
// script string literal.
var payloadEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// encodeBatchPayload serializes formulas to JSON and escapes the result
// for the renderFormulasBatch('<id>', '<payload>', <scale>) call.
func encodeBatchPayload(formulas []string) (string, error) {
	data, err := json.Marshal(formulas)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadEncode, err)
	}
	return payloadEscaper.Replace(string(data)), nil
}

// batchMessage is the wire shape of a result posted by the surface.
type batchMessage struct {
	BatchID string         `json:"batchId"`
	Results []entryMessage `json:"results"`
}

type entryMessage struct {
	Latex           string `json:"latex"`
	Base64          string `json:"base64"`
	ImageDataBase64 string `json:"imageDataBase64"`
}

// renderedFormula is one successfully decoded entry of a batch result.
type renderedFormula struct {
	Formula string
	Image   Image
}

// batchResult is the typed form of a surface result message.
type batchResult struct {
	BatchID  string
	Rendered []renderedFormula
	Dropped  int
}

// decodeBatchResult decodes a raw surface message. Malformed entries are
// dropped and counted; only a message without a batch id is rejected.
func decodeBatchResult(raw []byte) (batchResult, error) {
	var msg batchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return batchResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if msg.BatchID == "" {
		return batchResult{}, fmt.Errorf("%w: missing batchId", ErrInvalidPayload)
	}

	res := batchResult{
		BatchID:  msg.BatchID,
		Rendered: make([]renderedFormula, 0, len(msg.Results)),
	}
	for _, e := range msg.Results {
		data := e.Base64
		if data == "" {
			data = e.ImageDataBase64
		}
		if e.Latex == "" {
			res.Dropped++
			continue
		}
		img, err := decodeBase64Image(data)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Rendered = append(res.Rendered, renderedFormula{Formula: e.Latex, Image: img})
	}
	return res, nil
}
