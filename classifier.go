/*
File: classifier.go
Version: 1.1.0
Description: Classifier boundary. Wraps the face/gender and NSFW models behind
             a single Analyze call with an enforced processing budget.
*/

package main

import (
	"context"
	"fmt"
	"time"
)

// Classifier is the external model boundary. Implementations wrap the actual
// on-device face/gender and NSFW models; the pipeline only sees result types.
type Classifier interface {
	Analyze(ctx context.Context, frame *Frame, settings *Settings) Classification
}

// BudgetedClassifier enforces the settings-defined max processing time on top
// of whatever internal timeout the wrapped classifier has. A stalled model
// (GPU delegate contention is the usual culprit) can never block a cycle past
// the budget.
type BudgetedClassifier struct {
	inner Classifier
}

func NewBudgetedClassifier(inner Classifier) *BudgetedClassifier {
	return &BudgetedClassifier{inner: inner}
}

func (bc *BudgetedClassifier) Analyze(ctx context.Context, frame *Frame, settings *Settings) Classification {
	budget := settings.MaxProcessingTime
	if budget <= 0 {
		budget = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan Classification, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogError("[CLASSIFIER] Panic during analysis: %v", r)
				done <- Classification{OK: false, Err: fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- bc.inner.Analyze(ctx, frame, settings)
	}()

	select {
	case res := <-done:
		if IsDebugEnabled() {
			LogDebug("[CLASSIFIER] Analysis done in %v (faces=%d, nsfw=%.2f, regions=%d, ok=%v)",
				time.Since(start), len(res.Faces), res.NSFWConfidence, len(res.NSFWRegions), res.OK)
		}
		return res
	case <-ctx.Done():
		LogWarn("[CLASSIFIER] Analysis exceeded budget %v, degrading", budget)
		return Classification{OK: false, Err: "classification timeout"}
	}
}
