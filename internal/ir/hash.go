package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "cloudywindow/document/v1"
	DomainEvent    = "cloudywindow/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash returns a content hash of the document's persisted form.
// Two documents with the same hash serialize to identical bytes.
func DocumentHash(doc *Document) (string, error) {
	data, err := MarshalDocument(doc)
	if err != nil {
		return "", fmt.Errorf("DocumentHash: %w", err)
	}
	return hashWithDomain(DomainDocument, data), nil
}

// EventID computes the content-addressed id of a journal event.
// seq keeps ids distinct when the same payload is journaled twice.
func EventID(kind string, seq int64, payload []byte) string {
	data := make([]byte, 0, len(kind)+len(payload)+24)
	data = append(data, kind...)
	data = append(data, 0x00)
	data = append(data, fmt.Sprintf("%d", seq)...)
	data = append(data, 0x00)
	data = append(data, payload...)
	return hashWithDomain(DomainEvent, data)
}
