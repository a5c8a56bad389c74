package training

import (
	"bytes"
	"math"
	"testing"
)

func TestSummarizeSubject(t *testing.T) {
	records := []SubjectRecord{
		{Subject: "s1", Epoch: 0, AUC: 0.6, Loss: 0.7},
		{Subject: "s1", Epoch: 1, AUC: 0.9, Loss: 0.4},
		{Subject: "s1", Epoch: 2, AUC: 0.9, Loss: 0.4},
		{Subject: "s1", Epoch: 3, AUC: 0.8, Loss: 0.5},
	}

	s := SummarizeSubject(records)

	if s.Subject != "s1" {
		t.Errorf("Subject = %s", s.Subject)
	}
	if s.MaxAUC != 0.9 || s.MaxAUCEpoch != 1 {
		t.Errorf("Max AUC %f at %d, expected 0.9 at 1", s.MaxAUC, s.MaxAUCEpoch)
	}
	if s.MinLoss != 0.4 || s.MinLossEpoch != 1 {
		t.Errorf("Min loss %f at %d, expected 0.4 at 1", s.MinLoss, s.MinLossEpoch)
	}
}

func TestSubjectReport(t *testing.T) {
	history := map[string][]SubjectRecord{
		"b": {{Subject: "b", Epoch: 0, AUC: 0.5}, {Subject: "b", Epoch: 1, AUC: 0.7}},
		"a": {{Subject: "a", Epoch: 0, AUC: 0.9}},
		"c": nil,
	}

	report := NewSubjectReport(history)

	if len(report.Subjects) != 2 {
		t.Fatalf("Expected 2 subjects, got %d", len(report.Subjects))
	}
	if report.Subjects[0].Subject != "a" || report.Subjects[1].Subject != "b" {
		t.Errorf("Subjects not sorted: %+v", report.Subjects)
	}
	if math.Abs(report.MeanAUC-0.8) > 1e-12 {
		t.Errorf("MeanAUC = %f, expected 0.8", report.MeanAUC)
	}

	var buf bytes.Buffer
	n, err := report.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	expected := "a 0.900000\nb 0.700000\nMean AUC 0.800000\n"
	if buf.String() != expected {
		t.Errorf("WriteTo output = %q, expected %q", buf.String(), expected)
	}
	if n != int64(len(expected)) {
		t.Errorf("WriteTo returned %d, expected %d", n, len(expected))
	}
}

func TestEmptySubjectReport(t *testing.T) {
	report := NewSubjectReport(nil)
	if len(report.Subjects) != 0 || report.MeanAUC != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}

func TestSortSubjects(t *testing.T) {
	names := []string{"10", "s1", "2", "1", "a", "02"}
	SortSubjects(names)

	expected := []string{"1", "02", "2", "10", "a", "s1"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("SortSubjects = %v, expected %v", names, expected)
		}
	}
}

func TestSubjectReportNumericOrder(t *testing.T) {
	history := map[string][]SubjectRecord{
		"10": {{Subject: "10", AUC: 0.6}},
		"2":  {{Subject: "2", AUC: 0.8}},
	}

	var buf bytes.Buffer
	if _, err := NewSubjectReport(history).WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	expected := "2 0.800000\n10 0.600000\nMean AUC 0.700000\n"
	if buf.String() != expected {
		t.Errorf("WriteTo output = %q, expected %q", buf.String(), expected)
	}
}
