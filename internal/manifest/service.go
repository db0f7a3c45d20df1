package manifest

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Service builds the NodePort service forwarding port 80 to the app's pods.
func Service(name, namespace string) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: corev1.SchemeGroupVersion.String(),
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    ObjectLabels(name),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: SelectorLabels(name),
			Ports: []corev1.ServicePort{
				{
					Port:       HTTPPort,
					TargetPort: intstr.FromInt32(HTTPPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}
