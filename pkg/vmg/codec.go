// Package vmg builds and scrapes the voicemail management gateway wire
// messages: correlation ids, the fixed XML request template, and tag-based
// text extraction from raw responses.
package vmg

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
)

// OperationGetSPGURL asks the management gateway for the self-provisioning
// gateway URL.
const OperationGetSPGURL = "retrieveSPGURL"

// Response tags scraped from VMG replies.
const (
	TagTransactionID = "transactionid"
	TagSPGURL        = "spgurl"
)

// Fixed request template, four substitutions: transaction id, subscriber
// number, operation, device model. Inputs are trusted internal values; no
// escaping is applied.
const requestFormat = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<VMGVVMRequest>` +
	`  <MessageHeader>` +
	`    <transactionid>%s</transactionid>` +
	`  </MessageHeader>` +
	`  <MessageBody>` +
	`    <mdn>%s</mdn>` +
	`    <operation>%s</operation>` +
	`    <source>Device</source>` +
	`    <devicemodel>%s</devicemodel>` +
	`  </MessageBody>` +
	`</VMGVVMRequest>`

// NewTransactionID returns a fresh high-entropy decimal correlation id.
// Purely random, no global counter; collision across attempts is theoretically
// possible but not guarded against.
func NewTransactionID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("vmg: read random: %v", err))
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 10)
}

// EncodeRequest renders the outbound VMG request body.
func EncodeRequest(transactionID, subscriberNumber, operation, deviceModel string) []byte {
	return fmt.Appendf(nil, requestFormat, transactionID, subscriberNumber, operation, deviceModel)
}

// ExtractField returns the text enclosed by the first <tag>...</tag> pair in
// body. This is a scraping heuristic, not an XML parse: it tolerates unknown
// surrounding structure but does not handle nested same-named tags (the first
// open/close pair wins).
func ExtractField(body, tag string) (string, error) {
	pattern, err := regexp.Compile("(?s)<" + regexp.QuoteMeta(tag) + ">(.*?)</" + regexp.QuoteMeta(tag) + ">")
	if err != nil {
		return "", errors.WrapKind(err, errors.KindFieldNotFound, "bad tag pattern")
	}
	match := pattern.FindStringSubmatch(body)
	if match == nil {
		return "", errors.Newf(errors.KindFieldNotFound, "tag %s not found in response", tag)
	}
	return match[1], nil
}
