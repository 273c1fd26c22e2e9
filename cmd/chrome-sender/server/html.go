package server

// HTMLPage is the HTML content for the browser UI.
// It provides a simple interface to receive the server's video stream and
// watch the received bitrate react to REMB-driven rate control.
const HTMLPage = `<!DOCTYPE html>
<html>
<head>
    <title>Rate Control Sender Demo</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 800px;
            margin: 50px auto;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            background: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        h1 { color: #333; margin-bottom: 10px; }
        .subtitle { color: #666; margin-bottom: 30px; }
        button {
            background: #4285f4;
            color: white;
            border: none;
            padding: 12px 24px;
            border-radius: 4px;
            cursor: pointer;
            font-size: 16px;
            margin-right: 10px;
        }
        button:hover { background: #3367d6; }
        button:disabled { background: #ccc; cursor: not-allowed; }
        button.stop { background: #ea4335; }
        button.stop:hover { background: #d93025; }
        #status {
            margin: 20px 0;
            padding: 15px;
            border-radius: 4px;
            font-weight: 500;
        }
        .status-waiting { background: #fff3cd; color: #856404; }
        .status-connecting { background: #cce5ff; color: #004085; }
        .status-connected { background: #d4edda; color: #155724; }
        .status-error { background: #f8d7da; color: #721c24; }
        .status-closed { background: #e2e3e5; color: #383d41; }
        #bitrate {
            font-family: 'SF Mono', Consolas, monospace;
            font-size: 14px;
            color: #333;
            margin: 10px 0;
        }
        #video {
            width: 100%;
            max-width: 640px;
            background: #000;
            border-radius: 4px;
            margin: 20px 0;
        }
        .instructions {
            background: #e8f4fc;
            padding: 20px;
            border-radius: 4px;
            margin-top: 20px;
        }
        .instructions h3 { margin-top: 0; color: #1a73e8; }
        .instructions ol { margin-bottom: 0; }
        .instructions code {
            background: #f1f3f4;
            padding: 2px 6px;
            border-radius: 3px;
            font-family: 'SF Mono', Consolas, monospace;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Rate Control Sender Demo</h1>
        <p class="subtitle">The server streams synthetic video; your browser's REMB feedback drives its target bitrate</p>

        <div>
            <button id="startBtn" onclick="startCall()">Start Call</button>
            <button id="stopBtn" onclick="stopCall()" class="stop" disabled>Stop Call</button>
        </div>

        <div id="status" class="status-waiting">Status: Waiting to start</div>
        <div id="bitrate">Received: -</div>

        <video id="video" autoplay muted playsinline></video>

        <div class="instructions">
            <h3>What to look for</h3>
            <ol>
                <li>Open <code>chrome://webrtc-internals</code> in Chrome <strong>BEFORE</strong> starting the call</li>
                <li>Click "Start Call" above</li>
                <li>The video stays black: the payload is synthetic, only the RTP plumbing is real</li>
                <li>Watch the received bitrate above converge toward the server's target</li>
                <li>Check the server console for "REMB received" messages and drop counts</li>
            </ol>
        </div>
    </div>

    <script>
        let pc = null;
        let statsTimer = null;
        let lastBytes = 0;
        let lastStatsTime = 0;

        function setStatus(message, type) {
            const status = document.getElementById('status');
            status.textContent = 'Status: ' + message;
            status.className = 'status-' + type;
        }

        async function pollStats() {
            if (!pc) return;
            const stats = await pc.getStats();
            stats.forEach(report => {
                if (report.type === 'inbound-rtp' && report.kind === 'video') {
                    const now = report.timestamp;
                    if (lastStatsTime > 0) {
                        const bits = (report.bytesReceived - lastBytes) * 8;
                        const seconds = (now - lastStatsTime) / 1000;
                        const kbps = Math.round(bits / seconds / 1000);
                        document.getElementById('bitrate').textContent =
                            'Received: ' + kbps + ' kbps, ' +
                            report.packetsReceived + ' packets';
                    }
                    lastBytes = report.bytesReceived;
                    lastStatsTime = now;
                }
            });
        }

        async function startCall() {
            document.getElementById('startBtn').disabled = true;
            document.getElementById('stopBtn').disabled = false;

            try {
                setStatus('Creating connection...', 'connecting');

                // Create peer connection; we only receive
                pc = new RTCPeerConnection({
                    iceServers: [] // Local testing, no TURN needed
                });
                pc.addTransceiver('video', { direction: 'recvonly' });

                // Attach the incoming stream
                pc.ontrack = (event) => {
                    document.getElementById('video').srcObject = event.streams[0];
                };

                // Handle ICE candidates
                pc.onicecandidate = async (event) => {
                    if (event.candidate === null) {
                        // ICE gathering complete, send offer to server
                        const offer = pc.localDescription;
                        setStatus('Sending offer to server...', 'connecting');

                        try {
                            const response = await fetch('/offer', {
                                method: 'POST',
                                headers: { 'Content-Type': 'application/json' },
                                body: JSON.stringify(offer)
                            });

                            if (!response.ok) {
                                throw new Error('Server returned ' + response.status);
                            }

                            const answer = await response.json();
                            await pc.setRemoteDescription(answer);
                            setStatus('Connected! Receiving rate-controlled stream', 'connected');
                        } catch (err) {
                            setStatus('Failed to connect: ' + err.message, 'error');
                            stopCall();
                        }
                    }
                };

                // Monitor connection state
                pc.onconnectionstatechange = () => {
                    console.log('Connection state:', pc.connectionState);
                    if (pc.connectionState === 'connected') {
                        setStatus('Connected! Receiving rate-controlled stream', 'connected');
                        statsTimer = setInterval(pollStats, 1000);
                    } else if (pc.connectionState === 'failed') {
                        setStatus('Connection failed', 'error');
                    } else if (pc.connectionState === 'disconnected') {
                        setStatus('Disconnected', 'closed');
                    }
                };

                // Create and set offer
                const offer = await pc.createOffer();
                await pc.setLocalDescription(offer);

            } catch (err) {
                setStatus('Error: ' + err.message, 'error');
                console.error('Error starting call:', err);
                stopCall();
            }
        }

        function stopCall() {
            if (statsTimer) {
                clearInterval(statsTimer);
                statsTimer = null;
            }
            if (pc) {
                pc.close();
                pc = null;
            }
            lastBytes = 0;
            lastStatsTime = 0;
            document.getElementById('video').srcObject = null;
            document.getElementById('bitrate').textContent = 'Received: -';
            document.getElementById('startBtn').disabled = false;
            document.getElementById('stopBtn').disabled = true;
            setStatus('Call ended', 'closed');
        }
    </script>
</body>
</html>`
