package v1alpha1

// DeepCopyInto copies the receiver into out.
func (in *SyncPolicy) DeepCopyInto(out *SyncPolicy) {
	*out = *in
	if in.PollInterval != nil {
		d := *in.PollInterval
		out.PollInterval = &d
	}
	if in.ResyncInterval != nil {
		d := *in.ResyncInterval
		out.ResyncInterval = &d
	}
	if in.DriftCheckInterval != nil {
		d := *in.DriftCheckInterval
		out.DriftCheckInterval = &d
	}
	if in.CycleTimeout != nil {
		d := *in.CycleTimeout
		out.CycleTimeout = &d
	}
	if in.CallTimeout != nil {
		d := *in.CallTimeout
		out.CallTimeout = &d
	}
	if in.ConvergenceTimeout != nil {
		d := *in.ConvergenceTimeout
		out.ConvergenceTimeout = &d
	}
	if in.RetryLimit != nil {
		n := *in.RetryLimit
		out.RetryLimit = &n
	}
	if in.RetryBaseDelay != nil {
		d := *in.RetryBaseDelay
		out.RetryBaseDelay = &d
	}
	if in.AutoSync != nil {
		b := *in.AutoSync
		out.AutoSync = &b
	}
	if in.ReadConcurrency != nil {
		n := *in.ReadConcurrency
		out.ReadConcurrency = &n
	}
	if in.HistoryLimit != nil {
		n := *in.HistoryLimit
		out.HistoryLimit = &n
	}
}

// DeepCopyInto copies the receiver into out.
func (in *Application) DeepCopyInto(out *Application) {
	*out = *in
	in.SyncPolicy.DeepCopyInto(&out.SyncPolicy)
}

// DeepCopy returns a deep copy of the receiver.
func (in *Application) DeepCopy() *Application {
	if in == nil {
		return nil
	}
	out := new(Application)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *SyncResult) DeepCopyInto(out *SyncResult) {
	*out = *in
	in.Timestamp.DeepCopyInto(&out.Timestamp)
}

// DeepCopyInto copies the receiver into out.
func (in *AppSyncError) DeepCopyInto(out *AppSyncError) {
	*out = *in
	if in.Resources != nil {
		out.Resources = make([]ResourceRef, len(in.Resources))
		copy(out.Resources, in.Resources)
	}
}

func deepCopyErrors(in []AppSyncError) []AppSyncError {
	if in == nil {
		return nil
	}
	out := make([]AppSyncError, len(in))
	for i := range in {
		in[i].DeepCopyInto(&out[i])
	}
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *CycleSummary) DeepCopyInto(out *CycleSummary) {
	*out = *in
	in.StartTime.DeepCopyInto(&out.StartTime)
	in.EndTime.DeepCopyInto(&out.EndTime)
	if in.Operations != nil {
		out.Operations = make(map[OperationType]int, len(in.Operations))
		for k, v := range in.Operations {
			out.Operations[k] = v
		}
	}
	if in.Results != nil {
		out.Results = make(map[ResultStatus]int, len(in.Results))
		for k, v := range in.Results {
			out.Results[k] = v
		}
	}
	out.Errors = deepCopyErrors(in.Errors)
}

// DeepCopy returns a deep copy of the receiver.
func (in *CycleSummary) DeepCopy() *CycleSummary {
	if in == nil {
		return nil
	}
	out := new(CycleSummary)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *ApplicationSyncStatus) DeepCopyInto(out *ApplicationSyncStatus) {
	*out = *in
	in.LastSyncTime.DeepCopyInto(&out.LastSyncTime)
	if in.Results != nil {
		out.Results = make([]SyncResult, len(in.Results))
		for i := range in.Results {
			in.Results[i].DeepCopyInto(&out.Results[i])
		}
	}
	out.Errors = deepCopyErrors(in.Errors)
	if in.History != nil {
		out.History = make([]CycleSummary, len(in.History))
		for i := range in.History {
			in.History[i].DeepCopyInto(&out.History[i])
		}
	}
	if in.Inventory != nil {
		out.Inventory = make([]ResourceRef, len(in.Inventory))
		copy(out.Inventory, in.Inventory)
	}
	if in.NextRetryTime != nil {
		out.NextRetryTime = in.NextRetryTime.DeepCopy()
	}
}

// DeepCopy returns a deep copy of the receiver.
func (in *ApplicationSyncStatus) DeepCopy() *ApplicationSyncStatus {
	if in == nil {
		return nil
	}
	out := new(ApplicationSyncStatus)
	in.DeepCopyInto(out)
	return out
}
