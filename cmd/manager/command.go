package manager

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"

	notificationmiloapiscomv1alpha1 "go.miloapis.com/milo/pkg/apis/notification/v1alpha1"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	controller "go.miloapis.com/email-provider-revue/internal/controller"
	"go.miloapis.com/email-provider-revue/pkg/revue"
)

// TokenEnv is the environment variable holding the Revue API token.
const TokenEnv = "REVUE_API_TOKEN"

// nolint:gocyclo
func CreateManagerCommand() *cobra.Command {
	var (
		metricsAddr                                                           string
		metricsCertPath, metricsCertName, metricsCertKey                      string
		enableLeaderElection                                                  bool
		probeAddr                                                             string
		secureMetrics                                                         bool
		enableHTTP2                                                           bool
		leaderElectionID, leaderElectionNamespace, leaderElectionResourceLock string
		leaseDuration, renewDeadline, retryPeriod                             time.Duration
		revueHost                                                             string
		revueTimeout                                                          time.Duration
		contactNamePrefix                                                     string
		doubleOptIn                                                           bool
	)

	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Start the controller manager",
		Long:  "Start the Kubernetes controller manager for the email provider revue",
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLog := ctrl.Log.WithName("setup")

			var tlsOpts []func(*tls.Config)

			disableHTTP2 := func(c *tls.Config) {
				setupLog.Info("disabling http/2")
				c.NextProtos = []string{"http/1.1"}
			}

			if !enableHTTP2 {
				tlsOpts = append(tlsOpts, disableHTTP2)
			}

			var metricsCertWatcher *certwatcher.CertWatcher

			metricsServerOptions := metricsserver.Options{
				BindAddress:   metricsAddr,
				SecureServing: secureMetrics,
				TLSOpts:       tlsOpts,
			}

			if secureMetrics {
				// FilterProvider is used to protect the metrics endpoint with authn/authz.
				metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
			}

			// Without a certificate controller-runtime generates a self-signed one for the metrics server.
			if len(metricsCertPath) > 0 {
				setupLog.Info("Initializing metrics certificate watcher using provided certificates",
					"metrics-cert-path", metricsCertPath, "metrics-cert-name", metricsCertName, "metrics-cert-key", metricsCertKey)

				var err error
				metricsCertWatcher, err = certwatcher.New(
					filepath.Join(metricsCertPath, metricsCertName),
					filepath.Join(metricsCertPath, metricsCertKey),
				)
				if err != nil {
					setupLog.Error(err, "to initialize metrics certificate watcher", "error", err)
					return fmt.Errorf("failed to initialize metrics certificate watcher: %w", err)
				}

				metricsServerOptions.TLSOpts = append(metricsServerOptions.TLSOpts, func(config *tls.Config) {
					config.GetCertificate = metricsCertWatcher.GetCertificate
				})
			}

			setupLog.Info("Loading Revue API token")
			token := os.Getenv(TokenEnv)
			if token == "" {
				return fmt.Errorf("%s is required but not set", TokenEnv)
			}

			revueClient, err := revue.NewClient(token,
				revue.WithHost(revueHost),
				revue.WithHTTPClient(&http.Client{Timeout: revueTimeout}),
			)
			if err != nil {
				setupLog.Error(err, "unable to create Revue client")
				return fmt.Errorf("unable to create Revue client: %w", err)
			}

			scheme := runtime.NewScheme()
			utilruntime.Must(clientgoscheme.AddToScheme(scheme))
			utilruntime.Must(notificationmiloapiscomv1alpha1.AddToScheme(scheme))

			mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
				Scheme:                     scheme,
				Metrics:                    metricsServerOptions,
				HealthProbeBindAddress:     probeAddr,
				LeaderElection:             enableLeaderElection,
				LeaderElectionID:           leaderElectionID,
				LeaderElectionNamespace:    leaderElectionNamespace,
				LeaderElectionResourceLock: leaderElectionResourceLock,
				LeaseDuration:              ptr.To(leaseDuration),
				RenewDeadline:              ptr.To(renewDeadline),
				RetryPeriod:                ptr.To(retryPeriod),
			})
			if err != nil {
				setupLog.Error(err, "unable to start manager")
				return fmt.Errorf("unable to start manager: %w", err)
			}

			if metricsCertWatcher != nil {
				setupLog.Info("Adding metrics certificate watcher to manager")
				if err := mgr.Add(metricsCertWatcher); err != nil {
					setupLog.Error(err, "unable to add metrics certificate watcher to manager")
					return fmt.Errorf("unable to add metrics certificate watcher to manager: %w", err)
				}
			}

			subscriberController := &controller.RevueSubscriberController{
				Client:            mgr.GetClient(),
				Revue:             revueClient,
				ContactNamePrefix: contactNamePrefix,
				DoubleOptIn:       doubleOptIn,
			}
			if err := subscriberController.SetupWithManager(mgr); err != nil {
				setupLog.Error(err, "unable to create controller", "controller", "RevueSubscriber")
				return fmt.Errorf("unable to create revue subscriber controller: %w", err)
			}

			if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
				setupLog.Error(err, "unable to set up health check")
				return fmt.Errorf("unable to set up health check: %w", err)
			}
			if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
				setupLog.Error(err, "unable to set up ready check")
				return fmt.Errorf("unable to set up ready check: %w", err)
			}

			setupLog.Info("starting manager", "revue-base-url", revueClient.BaseURL())
			if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
				setupLog.Error(err, "problem running manager")
				return fmt.Errorf("problem running manager: %w", err)
			}
			return nil
		},
	}

	// Manager configuration flags
	cmd.Flags().StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metrics endpoint binds to. "+
		"Use :8443 for HTTPS or :8080 for HTTP, or leave as 0 to disable the metrics service.")
	cmd.Flags().StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	cmd.Flags().BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	cmd.Flags().BoolVar(&secureMetrics, "metrics-secure", true,
		"If set, the metrics endpoint is served securely via HTTPS. Use --metrics-secure=false to use HTTP instead.")
	cmd.Flags().BoolVar(&enableHTTP2, "enable-http2", false,
		"If set, HTTP/2 will be enabled for the metrics server")

	// Metrics configuration flags
	cmd.Flags().StringVar(&metricsCertPath, "metrics-cert-path", "",
		"The directory that contains the metrics server certificate.")
	cmd.Flags().StringVar(&metricsCertName, "metrics-cert-name", "tls.crt",
		"The name of the metrics server certificate file.")
	cmd.Flags().StringVar(&metricsCertKey, "metrics-cert-key", "tls.key", "The name of the metrics server key file.")

	// Leader election configuration flags
	cmd.Flags().StringVar(&leaderElectionID, "leader-election-id", "5c1e7a0d.revue.notification.miloapis.com",
		"The name of the resource that leader election will use for holding the leader lock.")
	cmd.Flags().StringVar(&leaderElectionNamespace, "leader-election-namespace", "",
		"Namespace to use for leader election. If empty, the controller will discover the namespace it is running in.")
	cmd.Flags().StringVar(&leaderElectionResourceLock, "leader-election-resource-lock", "leases",
		"The type of resource object that is used for locking during leader election. Supported options are 'leases', "+
			"'endpointsleases' and 'configmapsleases'.")
	cmd.Flags().DurationVar(&leaseDuration, "leader-election-lease-duration", 15*time.Second,
		"The duration that non-leader candidates will wait after observing a leadership renewal until attempting to "+
			"acquire leadership of a led but unrenewed leader slot.")
	cmd.Flags().DurationVar(&renewDeadline, "leader-election-renew-deadline", 10*time.Second,
		"The interval between attempts by the acting master to renew a leadership slot before it stops leading.")
	cmd.Flags().DurationVar(&retryPeriod, "leader-election-retry-period", 2*time.Second,
		"The duration the clients should wait between attempting acquisition and renewal of a leadership.")

	// Revue configuration flags
	cmd.Flags().StringVar(&revueHost, "revue-host", "https://www.getrevue.co/api",
		"The Revue API host. The API version is appended to it.")
	cmd.Flags().DurationVar(&revueTimeout, "revue-timeout", 10*time.Second, "Timeout for a single Revue API call.")
	cmd.Flags().StringVar(&contactNamePrefix, "newsletter-contact-prefix", controller.DefaultContactNamePrefix,
		"Only contacts whose name starts with this prefix are subscribed on Revue.")
	cmd.Flags().BoolVar(&doubleOptIn, "double-opt-in", false,
		"If set, Revue sends a confirmation email before the subscription becomes active.")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	return cmd
}
