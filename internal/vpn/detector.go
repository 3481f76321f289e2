package vpn

import (
	"context"
	"net"
	"regexp"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

var datacenterOrg = regexp.MustCompile(`(?i)(amazon|aws|google|gcp|microsoft|azure|digitalocean|linode|hetzner|ovh|vultr|alibaba|tencent|cloudflare|rackspace|hostinger|upcloud|leaseweb|contabo|scaleway|m247|datacamp|colocation|hosting|datacenter|dedicated|server)`)

const (
	scoreUnroutable = 100
	scoreDatacenter = 90
)

type Detector struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
	logger  *zap.Logger
}

func NewDetector(countryPath, asnPath string, logger *zap.Logger) *Detector {
	d := &Detector{logger: logger}
	if countryPath != "" {
		reader, err := geoip2.Open(countryPath)
		if err != nil {
			logger.Warn("country database unavailable", zap.String("path", countryPath), zap.Error(err))
		} else {
			d.country = reader
		}
	}
	if asnPath != "" {
		reader, err := geoip2.Open(asnPath)
		if err != nil {
			logger.Warn("asn database unavailable", zap.String("path", asnPath), zap.Error(err))
		} else {
			d.asn = reader
		}
	}
	return d
}

func (d *Detector) Close() {
	if d.country != nil {
		_ = d.country.Close()
	}
	if d.asn != nil {
		_ = d.asn.Close()
	}
}

func (d *Detector) Score(_ context.Context, ip string) float64 {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0
	}
	if parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return scoreUnroutable
	}
	if d.asn == nil {
		return 0
	}
	record, err := d.asn.ASN(parsed)
	if err != nil {
		return 0
	}
	if datacenterOrg.MatchString(record.AutonomousSystemOrganization) {
		return scoreDatacenter
	}
	return 0
}

func (d *Detector) Country(ip string) string {
	if d.country == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := d.country.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
