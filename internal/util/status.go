package util

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// StatusPatchParams holds the parameters for patching status.
type StatusPatchParams struct {
	Client     client.Client
	Logger     logr.Logger
	Object     client.Object
	Original   client.Object
	OldStatus  any
	NewStatus  any
	FieldOwner string
}

// PatchStatusIfChanged checks if the status has changed and patches it if so.
// It reports whether a patch was sent.
func PatchStatusIfChanged(ctx context.Context, params StatusPatchParams) (bool, error) {
	if equality.Semantic.DeepEqual(params.OldStatus, params.NewStatus) {
		params.Logger.Info("Resource status unchanged, skipping update")
		return false, nil
	}

	if err := params.Client.Status().Patch(ctx, params.Object, client.MergeFrom(params.Original), client.FieldOwner(params.FieldOwner)); err != nil {
		params.Logger.Error(err, "Failed to patch resource status")
		return false, fmt.Errorf("failed to patch resource status: %w", err)
	}

	return true, nil
}

// SetCondition records a condition observed at generation on conditions.
func SetCondition(conditions *[]metav1.Condition, condType string, status metav1.ConditionStatus, reason, message string, generation int64) {
	meta.SetStatusCondition(conditions, metav1.Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		LastTransitionTime: metav1.Now(),
		ObservedGeneration: generation,
	})
}

// IsConditionCurrent reports whether condType is present, has the wanted status
// and was observed at generation.
func IsConditionCurrent(conditions []metav1.Condition, condType string, status metav1.ConditionStatus, generation int64) bool {
	cond := meta.FindStatusCondition(conditions, condType)
	return cond != nil && cond.Status == status && cond.ObservedGeneration == generation
}
