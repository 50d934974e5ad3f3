package models

import (
	"testing"
	"time"
)

func TestDependencyRuleSatisfies(t *testing.T) {
	photo := "https://storage/photo.jpg"
	empty := ""

	completedRule := DependencyRule{
		Role:             RoleBranchManager,
		DependsOnRole:    RoleShelfStocker,
		RequiredArtifact: ArtifactCompleted,
	}
	photoRule := completedRule
	photoRule.RequiredArtifact = ArtifactCompletedWithPhoto

	if completedRule.Satisfies(nil) {
		t.Fatalf("nil prerequisite must never satisfy a rule")
	}
	if completedRule.Satisfies(&ReceivingTask{TaskStatus: TaskStatusPending}) {
		t.Fatalf("pending prerequisite must not satisfy")
	}
	if !completedRule.Satisfies(&ReceivingTask{TaskStatus: TaskStatusCompleted}) {
		t.Fatalf("completed prerequisite must satisfy the plain rule")
	}

	if photoRule.Satisfies(&ReceivingTask{TaskStatus: TaskStatusCompleted}) {
		t.Fatalf("photo rule must reject completion without a photo")
	}
	if photoRule.Satisfies(&ReceivingTask{TaskStatus: TaskStatusCompleted, CompletionPhotoUrl: &empty}) {
		t.Fatalf("photo rule must reject an empty photo URL")
	}
	if !photoRule.Satisfies(&ReceivingTask{TaskStatus: TaskStatusCompleted, CompletionPhotoUrl: &photo}) {
		t.Fatalf("photo rule must accept completion with a photo")
	}
}

func TestDependencyRulesApplyTo(t *testing.T) {
	effective := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s := &EngineSettings{}
	if !s.DependencyRulesApplyTo(effective.Add(-time.Hour)) {
		t.Fatalf("without an effective date, rules apply to everything")
	}

	s.DependencyRulesEffectiveAt = &effective
	if s.DependencyRulesApplyTo(effective.Add(-time.Second)) {
		t.Fatalf("task created before the boundary must be grandfathered")
	}
	if !s.DependencyRulesApplyTo(effective) {
		t.Fatalf("task created exactly at the boundary is governed by the rules")
	}
	if !s.DependencyRulesApplyTo(effective.Add(time.Hour)) {
		t.Fatalf("task created after the boundary is governed by the rules")
	}
}
