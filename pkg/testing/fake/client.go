package fake

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"

	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/kinds"
)

// Verb is a kind of request made to the fake API server.
type Verb string

// Verbs recorded by Client.
const (
	VerbGet    = Verb("get")
	VerbList   = Verb("list")
	VerbCreate = Verb("create")
	VerbUpdate = Verb("update")
	VerbDelete = Verb("delete")
)

// Call records one request.
type Call struct {
	Verb Verb
	ID   core.ID
}

// String implements fmt.Stringer.
func (c Call) String() string {
	return fmt.Sprintf("%s %s/%s", c.Verb, c.ID.Kind, c.ID.Name)
}

type reactor struct {
	verb  Verb
	id    core.ID
	err   error
	times int
}

func (r *reactor) matches(verb Verb, id core.ID) bool {
	if r.times == 0 || r.verb != verb {
		return false
	}
	return r.id == core.ID{} || r.id == id
}

// Client is a fake implementation of client.Client backed by a map of
// objects.
//
// It approximates the API server: Create and Update assign resourceVersions
// and generations, Update rejects stale resourceVersions, and Services get a
// clusterIP. Deployments are marked ready as soon as they are written, unless
// stalled.
type Client struct {
	scheme *runtime.Scheme

	// OnCall, if set, is called at the start of every request, before any
	// injected error is returned.
	OnCall func(ctx context.Context, verb Verb, id core.ID)

	mu       sync.Mutex
	objects  map[core.ID]*unstructured.Unstructured
	version  int64
	reactors []*reactor
	calls    []Call
	stalled  map[core.ID]bool
	deletes  []client.DeleteOptions
}

var _ client.Client = &Client{}

// NewClient instantiates a new fake.Client pre-populated with the specified
// objects.
//
// Calls t.Fatal if unable to properly instantiate Client.
func NewClient(t *testing.T, objs ...client.Object) *Client {
	t.Helper()

	result := &Client{
		scheme:  clientgoscheme.Scheme,
		objects: make(map[core.ID]*unstructured.Unstructured),
		stalled: make(map[core.ID]bool),
	}
	for _, o := range objs {
		if err := result.Create(context.Background(), o.DeepCopyObject().(client.Object)); err != nil {
			t.Fatal(err)
		}
	}
	result.calls = nil
	return result
}

// Fail makes the next times requests with the passed verb for id return err.
// A zero id matches every resource. Negative times fails forever.
func (c *Client) Fail(verb Verb, id core.ID, err error, times int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactors = append(c.reactors, &reactor{verb: verb, id: id, err: err, times: times})
}

// Stall keeps the status of the Deployment id from ever becoming ready.
func (c *Client) Stall(id core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled[id] = true
}

// Calls returns the requests made so far, in order.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Call, len(c.calls))
	copy(result, c.calls)
	return result
}

// Writes returns the create, update and delete requests made so far, in
// order.
func (c *Client) Writes() []Call {
	var result []Call
	for _, call := range c.Calls() {
		if call.Verb != VerbGet && call.Verb != VerbList {
			result = append(result, call)
		}
	}
	return result
}

// ResetCalls forgets the recorded requests.
func (c *Client) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// DeleteOptions returns the options of every delete request so far.
func (c *Client) DeleteOptions() []client.DeleteOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]client.DeleteOptions(nil), c.deletes...)
}

// Object returns a copy of the stored object with the passed ID.
func (c *Client) Object(id core.ID) (*unstructured.Unstructured, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, found := c.objects[id]
	if !found {
		return nil, false
	}
	return u.DeepCopy(), true
}

// Len returns the number of stored objects.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// Set replaces a stored object directly, as another actor in the cluster
// would. The resourceVersion is bumped but nothing else is changed.
func (c *Client) Set(obj *unstructured.Unstructured) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := obj.DeepCopy()
	c.version++
	u.SetResourceVersion(strconv.FormatInt(c.version, 10))
	c.objects[core.IDOf(u)] = u
}

// begin records the call and returns any injected error. Must not be called
// with c.mu held.
func (c *Client) begin(ctx context.Context, verb Verb, id core.ID) error {
	if c.OnCall != nil {
		c.OnCall(ctx, verb, id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Verb: verb, ID: id})
	for _, r := range c.reactors {
		if r.matches(verb, id) {
			if r.times > 0 {
				r.times--
			}
			return r.err
		}
	}
	return nil
}

func (c *Client) gvkOf(obj runtime.Object) (schema.GroupVersionKind, error) {
	gvk := obj.GetObjectKind().GroupVersionKind()
	if !gvk.Empty() {
		return gvk, nil
	}
	// Typed objects are often passed without type metadata.
	return apiutil.GVKForObject(obj, c.scheme)
}

func (c *Client) toUnstructured(obj client.Object) (*unstructured.Unstructured, error) {
	gvk, err := c.gvkOf(obj)
	if err != nil {
		return nil, err
	}
	var u *unstructured.Unstructured
	if uo, ok := obj.(*unstructured.Unstructured); ok {
		u = uo.DeepCopy()
	} else {
		m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %T to unstructured", obj)
		}
		u = &unstructured.Unstructured{Object: m}
	}
	u.SetGroupVersionKind(gvk)
	return u, nil
}

func (c *Client) fromUnstructured(u *unstructured.Unstructured, obj runtime.Object) error {
	if uo, ok := obj.(*unstructured.Unstructured); ok {
		uo.Object = u.DeepCopy().Object
		return nil
	}
	return runtime.DefaultUnstructuredConverter.FromUnstructured(u.DeepCopy().Object, obj)
}

func (c *Client) idOf(key client.ObjectKey, obj runtime.Object) (core.ID, error) {
	gvk, err := c.gvkOf(obj)
	if err != nil {
		return core.ID{}, err
	}
	return core.ID{GroupKind: gvk.GroupKind(), ObjectKey: key}, nil
}

// Get implements client.Client.
func (c *Client) Get(ctx context.Context, key client.ObjectKey, obj client.Object) error {
	id, err := c.idOf(key, obj)
	if err != nil {
		return err
	}
	if err := c.begin(ctx, VerbGet, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	u, found := c.objects[id]
	if !found {
		return newNotFound(id)
	}
	return c.fromUnstructured(u, obj)
}

// List implements client.Client.
//
// Does not paginate results.
func (c *Client) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	options := client.ListOptions{}
	options.ApplyOptions(opts)

	gvk, err := c.gvkOf(list)
	if err != nil {
		return err
	}
	gvk.Kind = strings.TrimSuffix(gvk.Kind, "List")
	if err := c.begin(ctx, VerbList, core.ID{GroupKind: gvk.GroupKind()}); err != nil {
		return err
	}

	c.mu.Lock()
	var items []interface{}
	for id, u := range c.objects {
		if id.GroupKind != gvk.GroupKind() {
			continue
		}
		if options.Namespace != "" && id.Namespace != options.Namespace {
			continue
		}
		if options.LabelSelector != nil && !options.LabelSelector.Matches(labels.Set(u.GetLabels())) {
			continue
		}
		items = append(items, u.DeepCopy().Object)
	}
	c.mu.Unlock()

	if ul, ok := list.(*unstructured.UnstructuredList); ok {
		ul.Items = nil
		for _, item := range items {
			ul.Items = append(ul.Items, unstructured.Unstructured{Object: item.(map[string]interface{})})
		}
		return nil
	}
	return runtime.DefaultUnstructuredConverter.FromUnstructured(map[string]interface{}{"items": items}, list)
}

// Create implements client.Client.
func (c *Client) Create(ctx context.Context, obj client.Object, opts ...client.CreateOption) error {
	u, err := c.toUnstructured(obj)
	if err != nil {
		return err
	}
	id := core.IDOf(u)
	if err := c.begin(ctx, VerbCreate, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.objects[id]; found {
		return newAlreadyExists(id)
	}

	c.version++
	u.SetUID(types.UID(fmt.Sprintf("uid-%d", c.version)))
	u.SetResourceVersion(strconv.FormatInt(c.version, 10))
	u.SetGeneration(1)
	u.SetCreationTimestamp(metav1.Unix(1600000000+c.version, 0))
	if id.GroupKind == kinds.Service().GroupKind() {
		if ip, _, _ := unstructured.NestedString(u.Object, "spec", "clusterIP"); ip == "" {
			_ = unstructured.SetNestedField(u.Object, fmt.Sprintf("10.96.0.%d", c.version%250+1), "spec", "clusterIP")
		}
	}
	c.simulateStatus(id, u)
	c.objects[id] = u
	return c.fromUnstructured(u, obj)
}

// Update implements client.Client.
func (c *Client) Update(ctx context.Context, obj client.Object, opts ...client.UpdateOption) error {
	u, err := c.toUnstructured(obj)
	if err != nil {
		return err
	}
	id := core.IDOf(u)
	if err := c.begin(ctx, VerbUpdate, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	old, found := c.objects[id]
	if !found {
		return newNotFound(id)
	}
	if rv := u.GetResourceVersion(); rv != "" && rv != old.GetResourceVersion() {
		return newConflict(id, "the object has been modified; please apply your changes to the latest version and try again")
	}

	c.version++
	u.SetUID(old.GetUID())
	u.SetCreationTimestamp(old.GetCreationTimestamp())
	u.SetResourceVersion(strconv.FormatInt(c.version, 10))
	generation := old.GetGeneration()
	if !reflect.DeepEqual(u.Object["spec"], old.Object["spec"]) {
		generation++
	}
	u.SetGeneration(generation)
	// Status is only written through the status subresource.
	if st, found := old.Object["status"]; found {
		u.Object["status"] = runtime.DeepCopyJSONValue(st)
	} else {
		delete(u.Object, "status")
	}
	c.simulateStatus(id, u)
	c.objects[id] = u
	return c.fromUnstructured(u, obj)
}

// Patch implements client.Client.
func (c *Client) Patch(ctx context.Context, obj client.Object, _ client.Patch, _ ...client.PatchOption) error {
	// Currently re-using the Update implementation for Patch since it fits the use-case where this is used for unit tests.
	// Please use this with caution for your use-case.
	return c.Update(ctx, obj)
}

// Delete implements client.Client.
func (c *Client) Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error {
	id, err := c.idOf(client.ObjectKeyFromObject(obj), obj)
	if err != nil {
		return err
	}
	if err := c.begin(ctx, VerbDelete, id); err != nil {
		return err
	}

	options := client.DeleteOptions{}
	options.ApplyOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, options)
	stored, found := c.objects[id]
	if !found {
		return newNotFound(id)
	}
	if p := options.Preconditions; p != nil {
		if p.UID != nil && *p.UID != stored.GetUID() {
			return newConflict(id, "UID precondition failed")
		}
		if p.ResourceVersion != nil && *p.ResourceVersion != stored.GetResourceVersion() {
			return newConflict(id, "resourceVersion precondition failed")
		}
	}
	delete(c.objects, id)
	return nil
}

// DeleteAllOf implements client.Client.
func (c *Client) DeleteAllOf(_ context.Context, _ client.Object, _ ...client.DeleteAllOfOption) error {
	return errors.New("fake.Client does not support DeleteAllOf()")
}

// Status implements client.Client.
func (c *Client) Status() client.StatusWriter {
	return &statusWriter{c: c}
}

// Scheme implements client.Client.
func (c *Client) Scheme() *runtime.Scheme {
	return c.scheme
}

// RESTMapper implements client.Client.
func (c *Client) RESTMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	for gvk := range c.scheme.AllKnownTypes() {
		mapper.Add(gvk, meta.RESTScopeNamespace)
	}
	return mapper
}

// simulateStatus marks Deployments as rolled out, as the Deployment
// controller eventually would. Must be called with c.mu held.
func (c *Client) simulateStatus(id core.ID, u *unstructured.Unstructured) {
	if id.GroupKind != kinds.Deployment().GroupKind() || c.stalled[id] {
		return
	}
	replicas, found, _ := unstructured.NestedInt64(u.Object, "spec", "replicas")
	if !found {
		replicas = 1
	}
	u.Object["status"] = map[string]interface{}{
		"observedGeneration": u.GetGeneration(),
		"replicas":           replicas,
		"updatedReplicas":    replicas,
		"readyReplicas":      replicas,
		"availableReplicas":  replicas,
		"conditions": []interface{}{
			map[string]interface{}{"type": "Available", "status": "True"},
			map[string]interface{}{"type": "Progressing", "status": "True", "reason": "NewReplicaSetAvailable"},
		},
	}
}

type statusWriter struct {
	c *Client
}

// Update implements client.StatusWriter by replacing only the status.
func (w *statusWriter) Update(ctx context.Context, obj client.Object, _ ...client.UpdateOption) error {
	u, err := w.c.toUnstructured(obj)
	if err != nil {
		return err
	}
	id := core.IDOf(u)
	if err := w.c.begin(ctx, VerbUpdate, id); err != nil {
		return err
	}
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	old, found := w.c.objects[id]
	if !found {
		return newNotFound(id)
	}
	updated := old.DeepCopy()
	updated.Object["status"] = runtime.DeepCopyJSONValue(u.Object["status"])
	w.c.version++
	updated.SetResourceVersion(strconv.FormatInt(w.c.version, 10))
	w.c.objects[id] = updated
	return w.c.fromUnstructured(updated, obj)
}

// Patch implements client.StatusWriter.
func (w *statusWriter) Patch(ctx context.Context, obj client.Object, _ client.Patch, opts ...client.PatchOption) error {
	return w.Update(ctx, obj)
}
