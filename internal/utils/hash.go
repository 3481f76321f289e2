package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

const ipHashLength = 16

func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ip)))
	return hex.EncodeToString(sum[:])[:ipHashLength]
}

func IsValidIP(value string) bool {
	return net.ParseIP(strings.TrimSpace(value)) != nil
}
