package manifest

import (
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

const (
	// DefaultGitSyncImage is the git-sync release the sidecar runs.
	DefaultGitSyncImage = "registry.k8s.io/git-sync/git-sync:v4.4.0"

	// DefaultAppImage is the image of the streamlit container.
	DefaultAppImage = "python:3.9-slim"

	gitSyncContainer = "git-sync"
	appContainer     = "streamlit"

	serviceAccountName = "streamlit-serviceaccount"
	launchConfigMap    = "streamlit-launch-script"
	githubAppSecret    = "github-app-credentials"

	codeVolume   = "code"
	launchVolume = "launch"

	gitSyncRoot    = "/tmp/code"
	gitSyncDest    = "repo"
	gitSyncWaitSec = 60

	appMountPath    = "/app"
	launchMountPath = "/app/launch"
	launchScript    = launchMountPath + "/launch.sh"
	entrypoint      = "main.py"

	// read and execute for the owner only
	launchScriptMode int32 = 0o500
)

// DeploymentParams holds the inputs of Deployment.
type DeploymentParams struct {
	Name       string
	Namespace  string
	Repo       string
	Branch     string
	CodeDir    string
	HasSecrets bool

	// GitSyncImage overrides DefaultGitSyncImage when set.
	GitSyncImage string

	// AppImage overrides DefaultAppImage when set.
	AppImage string
}

// Deployment builds the single-replica workload of an app: a git-sync
// sidecar keeping the repository checked out in a shared emptyDir, and the
// streamlit container running the launch script against it.
func Deployment(params DeploymentParams) *appsv1.Deployment {
	selector := SelectorLabels(params.Name)

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: appsv1.SchemeGroupVersion.String(),
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      params.Name,
			Namespace: params.Namespace,
			Labels:    ObjectLabels(params.Name),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{
				MatchLabels: selector,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: SelectorLabels(params.Name),
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: serviceAccountName,
					Containers: []corev1.Container{
						gitSyncSidecar(params),
						streamlitContainer(params),
					},
					Volumes: []corev1.Volume{
						{
							Name: codeVolume,
							VolumeSource: corev1.VolumeSource{
								EmptyDir: &corev1.EmptyDirVolumeSource{},
							},
						},
						{
							Name: launchVolume,
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: launchConfigMap},
									DefaultMode:          ptr.To(launchScriptMode),
								},
							},
						},
					},
				},
			},
		},
	}
}

// gitSyncSidecar authenticates as a GitHub App, so SSH and known-hosts
// checks are switched off.
func gitSyncSidecar(params DeploymentParams) corev1.Container {
	image := params.GitSyncImage
	if image == "" {
		image = DefaultGitSyncImage
	}

	return corev1.Container{
		Name:  gitSyncContainer,
		Image: image,
		VolumeMounts: []corev1.VolumeMount{
			{Name: codeVolume, MountPath: gitSyncRoot},
		},
		Env: []corev1.EnvVar{
			{Name: "GITSYNC_REPO", Value: params.Repo},
			{Name: "GIT_SYNC_BRANCH", Value: params.Branch},
			{Name: "GITSYNC_ROOT", Value: gitSyncRoot},
			{Name: "GIT_SYNC_DEST", Value: gitSyncDest},
			{Name: "GIT_KNOWN_HOSTS", Value: "false"},
			{Name: "GIT_SYNC_WAIT", Value: strconv.Itoa(gitSyncWaitSec)},
			{Name: "GIT_SYNC_SSH", Value: "false"},
			secretEnv("GITSYNC_GITHUB_APP_APPLICATION_ID", "App-Id"),
			secretEnv("GITSYNC_GITHUB_APP_INSTALLATION_ID", "Installation-Id"),
			secretEnv("GITSYNC_GITHUB_APP_PRIVATE_KEY", "streamlit-operator.pem"),
		},
	}
}

func streamlitContainer(params DeploymentParams) corev1.Container {
	image := params.AppImage
	if image == "" {
		image = DefaultAppImage
	}

	container := corev1.Container{
		Name:    appContainer,
		Image:   image,
		Command: []string{launchScript},
		Env: []corev1.EnvVar{
			{Name: "IN_HUB", Value: "True"},
			{Name: "CODE_DIR", Value: gitSyncDest + "/" + params.CodeDir},
			{Name: "ENTRYPOINT", Value: entrypoint},
		},
		Ports: []corev1.ContainerPort{
			{ContainerPort: HTTPPort},
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: codeVolume, MountPath: appMountPath},
			{Name: launchVolume, MountPath: launchMountPath},
		},
	}

	if params.HasSecrets {
		container.EnvFrom = []corev1.EnvFromSource{
			{
				SecretRef: &corev1.SecretEnvSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: SecretName(params.Name)},
				},
			},
		}
	}

	return container
}

func secretEnv(name, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: githubAppSecret},
				Key:                  key,
			},
		},
	}
}
