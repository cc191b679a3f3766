package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.miloapis.com/email-provider-revue/internal/util"
	"go.miloapis.com/email-provider-revue/pkg/revue"
	notificationmiloapiscomv1alpha1 "go.miloapis.com/milo/pkg/apis/notification/v1alpha1"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

const (
	// RevueSubscriberReadyCondition is a condition that is set to true when the contact is subscribed on Revue
	RevueSubscriberReadyCondition = "RevueSubscriberReady"
	// SubscriberNotCreatedReason is a reason that is set when Revue rejected the subscriber
	SubscriberNotCreatedReason = "SubscriberNotCreated"
	// SubscriberCreatedReason is a reason that is set when the subscriber was created on Revue
	SubscriberCreatedReason = "SubscriberCreated"
)

const (
	// ProviderName is the name recorded in the contact provider status.
	ProviderName = "Revue"

	// DefaultContactNamePrefix selects the contacts that belong to the newsletter.
	DefaultContactNamePrefix = "newsletter-"

	fieldOwner = "revuesubscriber-controller"
)

// RevueSubscriberController subscribes newsletter Contact objects on Revue.
type RevueSubscriberController struct {
	Client            client.Client
	Revue             revue.API
	ContactNamePrefix string
	DoubleOptIn       bool
}

// +kubebuilder:rbac:groups=notification.miloapis.com,resources=contacts,verbs=get;list;watch
// +kubebuilder:rbac:groups=notification.miloapis.com,resources=contacts/status,verbs=get;update;patch

// Reconcile is the main function that reconciles the Contact object.
func (r *RevueSubscriberController) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx).WithValues("controller", "RevueSubscriberController", "trigger", req.NamespacedName)
	log.Info("Starting reconciliation", "namespacedName", req.String(), "name", req.Name, "namespace", req.Namespace)

	// Get Contact
	contact := &notificationmiloapiscomv1alpha1.Contact{}
	err := r.Client.Get(ctx, req.NamespacedName, contact)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Info("Contact not found. Probably deleted.")
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("failed to get contact: %w", err)
	}

	if !r.isNewsletterContact(contact) {
		log.Info("Contact is not a newsletter contact, skipping")
		return ctrl.Result{}, nil
	}

	if !contact.GetDeletionTimestamp().IsZero() {
		log.Info("Contact is being deleted, skipping")
		return ctrl.Result{}, nil
	}

	if util.IsConditionCurrent(contact.Status.Conditions, RevueSubscriberReadyCondition, metav1.ConditionTrue, contact.GetGeneration()) {
		log.Info("Revue subscriber already created")
		return ctrl.Result{}, nil
	}
	if util.IsConditionCurrent(contact.Status.Conditions, RevueSubscriberReadyCondition, metav1.ConditionFalse, contact.GetGeneration()) {
		log.Info("Revue rejected this generation of the contact, waiting for a spec change")
		return ctrl.Result{}, nil
	}

	oldStatus := contact.Status.DeepCopy()
	original := contact.DeepCopy()

	subscriber, err := r.subscribe(ctx, contact)
	switch {
	case err != nil && isRejected(err):
		log.Info("Revue rejected the subscriber", "error", err.Error())
		util.SetCondition(&contact.Status.Conditions, RevueSubscriberReadyCondition, metav1.ConditionFalse,
			SubscriberNotCreatedReason, fmt.Sprintf("Revue subscriber not created on email provider: %s", err.Error()),
			contact.GetGeneration())
	case err != nil:
		log.Error(err, "Failed to create Revue subscriber")
		return ctrl.Result{}, fmt.Errorf("failed to create Revue subscriber: %w", err)
	default:
		log.Info("Revue subscriber created", "subscriberID", subscriber.ID)
		util.SetCondition(&contact.Status.Conditions, RevueSubscriberReadyCondition, metav1.ConditionTrue,
			SubscriberCreatedReason, "Revue subscriber created on email provider",
			contact.GetGeneration())
		setProviderStatus(contact, providerID(contact, subscriber))
	}

	if _, err := util.PatchStatusIfChanged(ctx, util.StatusPatchParams{
		Client:     r.Client,
		Logger:     log,
		Object:     contact,
		Original:   original,
		OldStatus:  oldStatus,
		NewStatus:  &contact.Status,
		FieldOwner: fieldOwner,
	}); err != nil {
		return ctrl.Result{}, err
	}

	log.Info("Contact reconciled")

	return ctrl.Result{}, nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *RevueSubscriberController) SetupWithManager(mgr ctrl.Manager) error {
	if r.ContactNamePrefix == "" {
		r.ContactNamePrefix = DefaultContactNamePrefix
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&notificationmiloapiscomv1alpha1.Contact{}).
		WithEventFilter(predicate.NewPredicateFuncs(func(obj client.Object) bool {
			return strings.HasPrefix(obj.GetName(), r.ContactNamePrefix)
		})).
		Named("revuesubscriber").
		Complete(r)
}

func (r *RevueSubscriberController) subscribe(ctx context.Context, contact *notificationmiloapiscomv1alpha1.Contact) (*revue.Subscriber, error) {
	log := logf.FromContext(ctx).WithValues("controller", "RevueSubscriberController", "trigger", contact.Name)
	log.Info("Creating Revue subscriber")

	resp, err := r.Revue.Subscribe(ctx, contact.Spec.Email, map[string]any{
		"first_name":    contact.Spec.GivenName,
		"last_name":     contact.Spec.FamilyName,
		"double_opt_in": r.DoubleOptIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe contact: %w", err)
	}

	subscriber := &revue.Subscriber{}
	if err := resp.Decode(subscriber); err != nil {
		log.Info("Could not decode Revue subscriber response", "error", err.Error())
		return &revue.Subscriber{Email: contact.Spec.Email}, nil
	}

	return subscriber, nil
}

// isNewsletterContact returns true if the contact name starts with the configured prefix.
func (r *RevueSubscriberController) isNewsletterContact(contact *notificationmiloapiscomv1alpha1.Contact) bool {
	prefix := r.ContactNamePrefix
	if prefix == "" {
		prefix = DefaultContactNamePrefix
	}
	return strings.HasPrefix(contact.Name, prefix)
}

// isRejected reports whether err means the subscriber itself is unacceptable,
// so retrying the same spec cannot succeed.
func isRejected(err error) bool {
	return revue.IsInvalidArgument(err) || revue.IsBadRequest(err) || revue.IsUnprocessable(err)
}

func providerID(contact *notificationmiloapiscomv1alpha1.Contact, subscriber *revue.Subscriber) string {
	if subscriber != nil && subscriber.ID != 0 {
		return strconv.FormatInt(subscriber.ID, 10)
	}
	return string(contact.UID)
}

// setProviderStatus records the Revue subscriber without touching other providers.
func setProviderStatus(contact *notificationmiloapiscomv1alpha1.Contact, id string) {
	for i := range contact.Status.Providers {
		if contact.Status.Providers[i].Name == ProviderName {
			contact.Status.Providers[i].ID = id
			return
		}
	}
	contact.Status.Providers = append(contact.Status.Providers, notificationmiloapiscomv1alpha1.ContactProviderStatus{
		Name: ProviderName,
		ID:   id,
	})
}
