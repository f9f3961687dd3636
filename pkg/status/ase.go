package status

import (
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
)

// ToASE converts the errors in err into the form they are published in.
func ToASE(err error) []v1alpha1.AppSyncError {
	errs := toMultiError(err)
	if errs == nil {
		return nil
	}
	var result []v1alpha1.AppSyncError
	for _, e := range errs.Errors() {
		result = append(result, toASE(e))
	}
	return result
}

func toASE(err Error) v1alpha1.AppSyncError {
	ase := v1alpha1.AppSyncError{
		Code:         err.Code(),
		ErrorMessage: err.Error(),
	}
	if re, ok := err.(ResourceError); ok {
		for _, id := range re.Resources() {
			ase.Resources = append(ase.Resources, refOf(id))
		}
	}
	return ase
}

func refOf(id core.ID) v1alpha1.ResourceRef {
	return v1alpha1.ResourceRef{
		Group:     id.Group,
		Kind:      id.Kind,
		Namespace: id.Namespace,
		Name:      id.Name,
	}
}
