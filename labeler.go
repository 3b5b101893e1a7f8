package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// NodeLabelIPReady is the managed label key from spec.md §6.
const NodeLabelIPReady = "ip.ready"

// LabelPatcher is component C: idempotent patch of the ip.ready label.
type LabelPatcher struct {
	Log    logr.Logger
	Client client.Client
}

func NewLabelPatcher(log logr.Logger, c client.Client) *LabelPatcher {
	return &LabelPatcher{Log: log.WithName("labeler"), Client: c}
}

// SetLabel submits a merge patch {metadata:{labels:{key:value}}}; value==nil
// clears the label via the JSON-merge-patch null sentinel. It is idempotent:
// if the node already carries the requested state, no API call is made.
func (l *LabelPatcher) SetLabel(ctx context.Context, node *corev1.Node, key string, value *string) error {
	current, has := node.Labels[key]

	if value == nil {
		if !has {
			return nil
		}
		l.Log.Info("clearing node label", "node", node.Name, "label", key)
	} else {
		if has && current == *value {
			return nil
		}
		l.Log.Info("setting node label", "node", node.Name, "label", key, "value", *value)
	}

	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"labels": map[string]interface{}{
				key: valueOrNullSentinel(value),
			},
		},
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshaling label patch for node %s: %w", node.Name, err)
	}

	if err := l.Client.Patch(ctx, node, client.RawPatch(types.MergePatchType, body)); err != nil {
		return fmt.Errorf("patching label %s on node %s: %w", key, node.Name, err)
	}

	if value == nil {
		delete(node.Labels, key)
	} else {
		if node.Labels == nil {
			node.Labels = map[string]string{}
		}
		node.Labels[key] = *value
	}

	return nil
}

// valueOrNullSentinel returns the JSON-merge-patch null used to delete a map
// key when value is nil.
func valueOrNullSentinel(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

// SetIPReady is a convenience wrapper used by the reconcile engine.
func (l *LabelPatcher) SetIPReady(ctx context.Context, node *corev1.Node, ready bool) error {
	if !ready {
		return l.SetLabel(ctx, node, NodeLabelIPReady, nil)
	}
	v := "true"
	return l.SetLabel(ctx, node, NodeLabelIPReady, &v)
}
