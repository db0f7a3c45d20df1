package manifest

import (
	"maps"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

// Annotation keys set on every Ingress.
const (
	AnnotationScheme       = "alb.ingress.kubernetes.io/scheme"
	AnnotationTargetType   = "alb.ingress.kubernetes.io/target-type"
	AnnotationListenPorts  = "alb.ingress.kubernetes.io/listen-ports"
	AnnotationSSLRedirect  = "alb.ingress.kubernetes.io/ssl-redirect"
	AnnotationExternalHost = "external-dns.alpha.kubernetes.io/hostname"
)

const (
	ingressClassName = "alb"
	catchAllPath     = "/*"
)

// IngressParams holds the operator-wide settings used to build ingresses.
type IngressParams struct {
	// BaseDNSRecord is the zone every app hostname lives under.
	BaseDNSRecord string

	// Suffix is appended to the app name in the hostname, e.g. "-stg".
	Suffix string

	// Annotations override the defaults on key collision. May be nil.
	Annotations map[string]string
}

// Hostname returns the public hostname of an app.
func Hostname(name, suffix, baseDNSRecord string) string {
	return name + suffix + "." + baseDNSRecord
}

// DefaultIngressAnnotations returns the load balancer annotations applied
// before overrides.
func DefaultIngressAnnotations(host string) map[string]string {
	return map[string]string{
		AnnotationScheme:       "internal",
		AnnotationTargetType:   "ip",
		AnnotationListenPorts:  `[{"HTTP": 80}, {"HTTPS":443}]`,
		AnnotationSSLRedirect:  "443",
		AnnotationExternalHost: host,
	}
}

// MergeAnnotations returns a new map holding defaults overlaid with
// overrides. Neither input is modified.
func MergeAnnotations(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	maps.Copy(merged, defaults)
	maps.Copy(merged, overrides)

	return merged
}

// Ingress builds the single-host ingress routing every path of the app's
// hostname to its Service on port 80.
func Ingress(name, namespace string, params IngressParams) *networkingv1.Ingress {
	host := Hostname(name, params.Suffix, params.BaseDNSRecord)

	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{
			APIVersion: networkingv1.SchemeGroupVersion.String(),
			Kind:       "Ingress",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Labels:      ObjectLabels(name),
			Annotations: MergeAnnotations(DefaultIngressAnnotations(host), params.Annotations),
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: ptr.To(ingressClassName),
			Rules: []networkingv1.IngressRule{
				{
					Host: host,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     catchAllPath,
									PathType: ptr.To(networkingv1.PathTypeImplementationSpecific),
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: name,
											Port: networkingv1.ServiceBackendPort{Number: HTTPPort},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
