package controller

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go.miloapis.com/email-provider-revue/pkg/revue"
	"go.miloapis.com/email-provider-revue/pkg/revue/revuetest"
	notificationmiloapiscomv1alpha1 "go.miloapis.com/milo/pkg/apis/notification/v1alpha1"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newContact(name string) *notificationmiloapiscomv1alpha1.Contact {
	return &notificationmiloapiscomv1alpha1.Contact{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			UID:       types.UID("contact-uid"),
		},
		Spec: notificationmiloapiscomv1alpha1.ContactSpec{
			Email:      "ada@example.com",
			GivenName:  "Ada",
			FamilyName: "Lovelace",
		},
	}
}

var _ = Describe("RevueSubscriberController", func() {
	var (
		ctx        context.Context
		transport  *revuetest.Transport
		k8sClient  client.Client
		controller *RevueSubscriberController
	)

	setup := func(objs ...client.Object) {
		scheme := runtime.NewScheme()
		Expect(notificationmiloapiscomv1alpha1.AddToScheme(scheme)).To(Succeed())

		k8sClient = fake.NewClientBuilder().
			WithScheme(scheme).
			WithObjects(objs...).
			WithStatusSubresource(&notificationmiloapiscomv1alpha1.Contact{}).
			Build()

		sdk, err := revue.NewClient("token", revue.WithHTTPClient(transport))
		Expect(err).NotTo(HaveOccurred())

		controller = &RevueSubscriberController{
			Client:            k8sClient,
			Revue:             sdk,
			ContactNamePrefix: DefaultContactNamePrefix,
		}
	}

	reconcile := func(name string) (ctrl.Result, error) {
		return controller.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: name, Namespace: "default"}})
	}

	fetch := func(name string) *notificationmiloapiscomv1alpha1.Contact {
		contact := &notificationmiloapiscomv1alpha1.Contact{}
		Expect(k8sClient.Get(ctx, types.NamespacedName{Name: name, Namespace: "default"}, contact)).To(Succeed())
		return contact
	}

	BeforeEach(func() {
		ctx = context.Background()
		transport = revuetest.NewTransport()
	})

	When("the contact is a newsletter contact", func() {
		It("subscribes it on Revue and marks it ready", func() {
			transport.Append(http.StatusOK, `{"id":42,"list_id":1,"email":"ada@example.com","first_name":"Ada","last_name":"Lovelace"}`)
			setup(newContact("newsletter-ada"))

			_, err := reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())

			reqs := transport.Requests()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Method).To(Equal(http.MethodPost))
			Expect(reqs[0].Path).To(Equal("/api/v2/subscribers"))

			var payload map[string]any
			Expect(json.Unmarshal(reqs[0].Body, &payload)).To(Succeed())
			Expect(payload).To(HaveKeyWithValue("email", "ada@example.com"))
			Expect(payload).To(HaveKeyWithValue("first_name", "Ada"))
			Expect(payload).To(HaveKeyWithValue("last_name", "Lovelace"))
			Expect(payload).To(HaveKeyWithValue("double_opt_in", false))

			contact := fetch("newsletter-ada")
			cond := meta.FindStatusCondition(contact.Status.Conditions, RevueSubscriberReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionTrue))
			Expect(cond.Reason).To(Equal(SubscriberCreatedReason))
			Expect(contact.Status.Providers).To(ContainElement(notificationmiloapiscomv1alpha1.ContactProviderStatus{
				Name: ProviderName,
				ID:   "42",
			}))
		})

		It("does not subscribe twice", func() {
			transport.Append(http.StatusOK, `{"id":42,"email":"ada@example.com"}`)
			setup(newContact("newsletter-ada"))

			_, err := reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())
			_, err = reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())

			Expect(transport.Requests()).To(HaveLen(1))
		})

		It("records a rejected subscriber without requeueing", func() {
			transport.Append(http.StatusUnprocessableEntity, `{"error":"Email has already been taken"}`)
			setup(newContact("newsletter-ada"))

			result, err := reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(BeZero())

			contact := fetch("newsletter-ada")
			cond := meta.FindStatusCondition(contact.Status.Conditions, RevueSubscriberReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionFalse))
			Expect(cond.Reason).To(Equal(SubscriberNotCreatedReason))
			Expect(contact.Status.Providers).To(BeEmpty())

			_, err = reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(transport.Requests()).To(HaveLen(1))
		})

		It("rejects an invalid email without calling Revue", func() {
			contact := newContact("newsletter-ada")
			contact.Spec.Email = "not-an-email"
			setup(contact)

			_, err := reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(transport.Requests()).To(BeEmpty())

			cond := meta.FindStatusCondition(fetch("newsletter-ada").Status.Conditions, RevueSubscriberReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionFalse))
		})

		It("returns transient errors for requeue", func() {
			transport.Append(http.StatusInternalServerError, `{"error":"boom"}`)
			setup(newContact("newsletter-ada"))

			_, err := reconcile("newsletter-ada")
			Expect(err).To(HaveOccurred())

			contact := fetch("newsletter-ada")
			Expect(meta.FindStatusCondition(contact.Status.Conditions, RevueSubscriberReadyCondition)).To(BeNil())
		})

		It("keeps other provider entries", func() {
			transport.Append(http.StatusOK, `{"id":7,"email":"ada@example.com"}`)
			contact := newContact("newsletter-ada")
			contact.Status.Providers = []notificationmiloapiscomv1alpha1.ContactProviderStatus{{Name: "Resend", ID: "resend-1"}}
			setup(contact)

			_, err := reconcile("newsletter-ada")
			Expect(err).NotTo(HaveOccurred())

			Expect(fetch("newsletter-ada").Status.Providers).To(ConsistOf(
				notificationmiloapiscomv1alpha1.ContactProviderStatus{Name: "Resend", ID: "resend-1"},
				notificationmiloapiscomv1alpha1.ContactProviderStatus{Name: ProviderName, ID: "7"},
			))
		})
	})

	When("the contact is not a newsletter contact", func() {
		It("leaves it alone", func() {
			setup(newContact("ada"))

			_, err := reconcile("ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(transport.Requests()).To(BeEmpty())
			Expect(fetch("ada").Status.Conditions).To(BeEmpty())
		})
	})

	When("the contact does not exist", func() {
		It("returns without error", func() {
			setup()

			_, err := reconcile("newsletter-missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(transport.Requests()).To(BeEmpty())
		})
	})
})
