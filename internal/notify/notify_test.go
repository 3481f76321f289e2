package notify

import (
	"fmt"
	"strings"
	"testing"

	"gatewarden/internal/config"
	"gatewarden/internal/policy"
)

func testColors() config.EmbedColors {
	return config.EmbedColors{Success: 0x2ECC71, Warning: 0xE67E22, Error: 0xE74C3C, Info: 0x3498DB}
}

func TestAdminMentionLineCapsAtTen(t *testing.T) {
	ids := make([]string, 15)
	for i := range ids {
		ids[i] = fmt.Sprintf("10%d", i)
	}
	line := AdminMentionLine(ids, "")
	if got := strings.Count(line, "<@"); got != 10 {
		t.Fatalf("expected exactly 10 mentions, got %d in %q", got, line)
	}
	for i := 0; i < 10; i++ {
		if !strings.Contains(line, "<@"+ids[i]+">") {
			t.Fatalf("expected %s mentioned in %q", ids[i], line)
		}
	}
	if strings.Contains(line, "<@"+ids[10]+">") {
		t.Fatalf("expected %s omitted from %q", ids[10], line)
	}
	if !strings.Contains(line, "5 more admins not mentioned") {
		t.Fatalf("expected omitted count noted, got %q", line)
	}
}

func TestAdminMentionLineUnderCap(t *testing.T) {
	line := AdminMentionLine([]string{"1", "2"}, "role9")
	if line != "<@1> <@2>" {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestAdminMentionLineFallsBackToStaffRole(t *testing.T) {
	if line := AdminMentionLine(nil, "role9"); line != "<@&role9>" {
		t.Fatalf("unexpected line %q", line)
	}
	if line := AdminMentionLine(nil, ""); line != "" {
		t.Fatalf("expected empty line, got %q", line)
	}
}

func TestAlertEmbedDuplicate(t *testing.T) {
	embed := AlertEmbed(policy.Alert{
		Decision:    policy.DecisionRejectDuplicate,
		UserID:      "u2",
		DuplicateOf: "u1",
		Attempts:    2,
		MaxAttempts: 3,
	}, testColors(), 1)
	if embed.Title != "Duplicate hardware detected" {
		t.Fatalf("unexpected title %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "<@u2>") || !strings.Contains(embed.Description, "<@u1>") {
		t.Fatalf("expected both users referenced, got %q", embed.Description)
	}
	if embed.Color != testColors().Warning {
		t.Fatalf("unexpected color %#x", embed.Color)
	}
	found := false
	for _, f := range embed.Fields {
		if f.Name == "Attempts" && f.Value == "2 of 3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected attempts field, got %+v", embed.Fields)
	}
}

func TestAlertEmbedAutoBlacklistEscalatesColor(t *testing.T) {
	embed := AlertEmbed(policy.Alert{
		Decision:        policy.DecisionRejectUnknownMember,
		UserID:          "u2",
		AutoBlacklisted: true,
	}, testColors(), 1)
	if embed.Color != testColors().Error {
		t.Fatalf("expected error color, got %#x", embed.Color)
	}
	found := false
	for _, f := range embed.Fields {
		if f.Name == "Auto-blacklist" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected auto-blacklist field, got %+v", embed.Fields)
	}
}

func TestAlertEmbedAggregatedCount(t *testing.T) {
	embed := AlertEmbed(policy.Alert{Decision: policy.DecisionRejectVPN, UserID: "u2", VPNScore: 90}, testColors(), 4)
	found := false
	for _, f := range embed.Fields {
		if f.Name == "Occurrences" && strings.HasPrefix(f.Value, "4 ") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected occurrence count, got %+v", embed.Fields)
	}
}

func TestSuccessEmbedIncludesInviter(t *testing.T) {
	embed := SuccessEmbed(policy.Alert{
		Decision:    policy.DecisionAccept,
		UserID:      "u1",
		Username:    "alice",
		DisplayName: "Alice",
		InviterID:   "u9",
		InviteCode:  "abc123",
	}, testColors())
	if embed.Color != testColors().Success {
		t.Fatalf("unexpected color %#x", embed.Color)
	}
	var inviter string
	for _, f := range embed.Fields {
		if f.Name == "Invited by" {
			inviter = f.Value
		}
	}
	if !strings.Contains(inviter, "<@u9>") || !strings.Contains(inviter, "abc123") {
		t.Fatalf("unexpected inviter field %q", inviter)
	}
}

func TestSuccessEmbedUnknownInviter(t *testing.T) {
	embed := SuccessEmbed(policy.Alert{Decision: policy.DecisionAccept, UserID: "u1"}, testColors())
	var inviter string
	for _, f := range embed.Fields {
		if f.Name == "Invited by" {
			inviter = f.Value
		}
	}
	if inviter != "Unknown" {
		t.Fatalf("unexpected inviter field %q", inviter)
	}
}
