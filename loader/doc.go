// Package loader builds pipelines from declarative YAML descriptions.
//
// A description names the pipeline, its processes and clusters by
// registered type, and the connections between their ports:
//
//	pipeline:
//	  name: tracker
//	  config:
//	    edge:
//	      capacity: "8"
//
//	processes:
//	  - name: reader
//	    type: frame-source
//	    config:
//	      path: /data/frames
//
//	clusters:
//	  - name: stabilize
//	    type: stabilizer
//	    config:
//	      gain: "2"
//	    processes:
//	      - name: smooth
//	        type: smoother
//	    map:
//	      config:
//	        - key: gain
//	          to: smooth.gain
//	      inputs:
//	        - port: in
//	          to: [smooth.in]
//	      outputs:
//	        - port: out
//	          to: smooth.out
//
//	connections:
//	  - from: reader.image
//	    to: stabilize.in
//
// Processes are created through a process.Registry, so a description can
// only instantiate types the host program registered. The loader returns
// the built pipeline with its topology open; the caller runs Setup and
// Initialize before scheduling it.
package loader
